package config

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: "~/hlspack/output",
			StateDir:  "~/.local/share/hlspack",
			LogDir:    "~/.local/share/hlspack/logs",
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:   "ffmpeg",
			FFprobeBinary:  "ffprobe",
			SegmentSeconds: 4,
			Preset:         "fast",
		},
		Pipeline: Pipeline{
			EncodeTimeoutMinutes: 0,
			ThumbnailEnabled:     true,
			ThumbnailFraction:    0.25,
			MinFreeSpaceGiB:      5,
		},
		Jobs: Jobs{
			RetentionHours:         24,
			CleanupIntervalMinutes: 60,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

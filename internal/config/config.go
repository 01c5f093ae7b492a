package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"hlspack/internal/hls"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// FFmpeg contains external tool configuration.
type FFmpeg struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	SegmentSeconds int    `toml:"segment_seconds"`
	Preset         string `toml:"preset"`
}

// Pipeline contains orchestration settings.
type Pipeline struct {
	// EncodeTimeoutMinutes bounds each rendition encode; 0 disables the
	// deadline and a stuck encode stalls its job.
	EncodeTimeoutMinutes int     `toml:"encode_timeout_minutes"`
	ThumbnailEnabled     bool    `toml:"thumbnail_enabled"`
	ThumbnailFraction    float64 `toml:"thumbnail_fraction"`
	MinFreeSpaceGiB      int     `toml:"min_free_space_gib"`
}

// Jobs contains job registry retention settings.
type Jobs struct {
	RetentionHours         int `toml:"retention_hours"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// LadderEntry is one configured rendition. Bitrates use the compact
// human form ("400k", "5M") and are parsed into bits per second.
type LadderEntry struct {
	Name         string `toml:"name"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	VideoBitrate string `toml:"video_bitrate"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Config encapsulates all configuration values for hlspack.
type Config struct {
	Paths    Paths         `toml:"paths"`
	FFmpeg   FFmpeg        `toml:"ffmpeg"`
	Pipeline Pipeline      `toml:"pipeline"`
	Jobs     Jobs          `toml:"jobs"`
	Logging  Logging       `toml:"logging"`
	Ladder   []LadderEntry `toml:"ladder"`
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hlspack/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and normalized. The
// second return value is the resolved path; the third reports whether
// the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hlspack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OutputDirFor returns the per-video directory HLS artifacts are
// written into.
func (c *Config) OutputDirFor(videoID string) string {
	return filepath.Join(c.Paths.OutputDir, videoID)
}

// Renditions resolves the configured ladder into parsed renditions. An
// empty [[ladder]] section falls back to the built-in ladder.
func (c *Config) Renditions() ([]hls.Rendition, error) {
	if len(c.Ladder) == 0 {
		return hls.DefaultLadder(), nil
	}
	ladder := make([]hls.Rendition, 0, len(c.Ladder))
	for _, entry := range c.Ladder {
		video, err := hls.ParseBitrate(entry.VideoBitrate)
		if err != nil {
			return nil, fmt.Errorf("ladder entry %q: video bitrate: %w", entry.Name, err)
		}
		audio, err := hls.ParseBitrate(entry.AudioBitrate)
		if err != nil {
			return nil, fmt.Errorf("ladder entry %q: audio bitrate: %w", entry.Name, err)
		}
		ladder = append(ladder, hls.Rendition{
			Name:         strings.TrimSpace(entry.Name),
			Width:        entry.Width,
			Height:       entry.Height,
			VideoBitrate: video,
			AudioBitrate: audio,
		})
	}
	if err := hls.ValidateLadder(ladder); err != nil {
		return nil, err
	}
	return ladder, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir is required")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir is required")
	}
	if c.FFmpeg.SegmentSeconds <= 0 {
		return fmt.Errorf("ffmpeg.segment_seconds must be positive, got %d", c.FFmpeg.SegmentSeconds)
	}
	if c.Pipeline.EncodeTimeoutMinutes < 0 {
		return fmt.Errorf("pipeline.encode_timeout_minutes must not be negative, got %d", c.Pipeline.EncodeTimeoutMinutes)
	}
	if c.Pipeline.ThumbnailFraction <= 0 || c.Pipeline.ThumbnailFraction >= 1 {
		return fmt.Errorf("pipeline.thumbnail_fraction must be in (0, 1), got %v", c.Pipeline.ThumbnailFraction)
	}
	if c.Jobs.RetentionHours <= 0 {
		return fmt.Errorf("jobs.retention_hours must be positive, got %d", c.Jobs.RetentionHours)
	}
	if _, err := c.Renditions(); err != nil {
		return err
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other
// packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified
// location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"hlspack/internal/hls"
)

var commandContext = exec.CommandContext

// SegmentPattern is the zero-padded segment filename template inside a
// rendition directory.
const SegmentPattern = "segment_%03d.ts"

// ProgressUpdate carries one fractional progress event from an encode.
type ProgressUpdate struct {
	// Fraction is in [0, 1] relative to the source duration.
	Fraction float64
}

// EncodeRequest describes one rendition encode.
type EncodeRequest struct {
	InputPath string
	// OutputDir is the per-rendition directory the playlist and
	// segments are written into.
	OutputDir       string
	Rendition       hls.Rendition
	SegmentSeconds  int
	Preset          string
	DurationSeconds float64
}

// Client defines the encode capability the pipeline consumes.
type Client interface {
	Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode runs one rendition encode and returns the variant playlist
// path. Progress events are parsed from ffmpeg's machine-readable
// -progress stream; when the source duration is unknown no
// intermediate fractions are reported.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) (string, error) {
	if req.InputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return "", errors.New("output directory required")
	}
	if err := req.Rendition.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create rendition directory: %w", err)
	}

	playlistPath := filepath.Join(req.OutputDir, hls.VariantPlaylistName)
	args := encodeArgs(req, playlistPath)

	cmd := commandContext(ctx, c.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	totalMicros := req.DurationSeconds * 1e6
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if progress == nil || totalMicros <= 0 {
				continue
			}
			micros, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || micros < 0 {
				continue
			}
			fraction := micros / totalMicros
			if fraction > 1 {
				fraction = 1
			}
			progress(ProgressUpdate{Fraction: fraction})
		case "progress":
			if progress != nil && strings.TrimSpace(value) == "end" {
				progress(ProgressUpdate{Fraction: 1})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read ffmpeg progress: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("encode %s: %w: %s", req.Rendition.Name, err, tail(stderr.String()))
	}

	return playlistPath, nil
}

func encodeArgs(req EncodeRequest, playlistPath string) []string {
	segmentSeconds := req.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = 4
	}
	preset := strings.TrimSpace(req.Preset)
	if preset == "" {
		preset = "fast"
	}

	videoBitrate := strconv.Itoa(req.Rendition.VideoBitrate)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", req.InputPath,
		"-vf", fmt.Sprintf("scale=%d:%d", req.Rendition.Width, req.Rendition.Height),
		"-c:v", "libx264",
		"-preset", preset,
		"-b:v", videoBitrate,
		"-maxrate", videoBitrate,
		"-bufsize", strconv.Itoa(req.Rendition.VideoBitrate * 2),
		"-sc_threshold", "0",
		"-g", "48",
		"-keyint_min", "48",
		"-c:a", "aac",
		"-b:a", strconv.Itoa(req.Rendition.AudioBitrate),
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(req.OutputDir, SegmentPattern),
		"-progress", "pipe:1",
		"-nostats",
		playlistPath,
	}
}

// tail returns the last few lines of ffmpeg stderr for error messages.
func tail(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "(no stderr output)"
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, "; ")
}

var _ Client = (*CLI)(nil)

package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ThumbnailName is the filename the still image is written under
// inside a job's output directory.
const ThumbnailName = "thumbnail.jpg"

// Extractor defines the thumbnail capability the pipeline consumes.
// Absence of a thumbnail is a valid outcome; callers treat every error
// as non-fatal.
type Extractor interface {
	ExtractFrame(ctx context.Context, inputPath, outputPath string, atSeconds float64) (string, error)
}

// ExtractFrame grabs a single frame at the given offset and writes it
// as a JPEG to outputPath.
func (c *CLI) ExtractFrame(ctx context.Context, inputPath, outputPath string, atSeconds float64) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if outputPath == "" {
		return "", errors.New("output path required")
	}
	if atSeconds < 0 {
		atSeconds = 0
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}

	cmd := commandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("extract frame: %w: %s", err, tail(stderr.String()))
	}
	return outputPath, nil
}

// FrameOffset computes the extraction point for a thumbnail given the
// source duration and a fraction in (0, 1). An unknown duration falls
// back to one second into the video.
func FrameOffset(durationSeconds, fraction float64) float64 {
	if durationSeconds <= 0 {
		return 1.0
	}
	if fraction <= 0 || fraction >= 1 {
		fraction = 0.25
	}
	return durationSeconds * fraction
}

var _ Extractor = (*CLI)(nil)

package hls

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rendition describes one fixed resolution/bitrate encoding of a source
// video. Bitrates are stored in bits per second.
type Rendition struct {
	Name         string
	Width        int
	Height       int
	VideoBitrate int
	AudioBitrate int
}

// Bandwidth returns the BANDWIDTH value advertised for the rendition in
// the master playlist: the sum of the configured video and audio
// bitrates in bits per second.
func (r Rendition) Bandwidth() int {
	return r.VideoBitrate + r.AudioBitrate
}

// Resolution returns the literal WIDTHxHEIGHT string used in manifests.
func (r Rendition) Resolution() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Validate checks that the rendition can be encoded and advertised.
func (r Rendition) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rendition name required")
	}
	if strings.ContainsAny(r.Name, "/\\") {
		return fmt.Errorf("rendition name %q must not contain path separators", r.Name)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("rendition %s: dimensions %dx%d invalid", r.Name, r.Width, r.Height)
	}
	if r.VideoBitrate <= 0 {
		return fmt.Errorf("rendition %s: video bitrate required", r.Name)
	}
	if r.AudioBitrate <= 0 {
		return fmt.Errorf("rendition %s: audio bitrate required", r.Name)
	}
	return nil
}

// DefaultLadder returns the built-in bitrate ladder. Order matters: it
// determines both encode fan-out order and master playlist emission
// order.
func DefaultLadder() []Rendition {
	return []Rendition{
		{Name: "240p", Width: 426, Height: 240, VideoBitrate: 400_000, AudioBitrate: 64_000},
		{Name: "360p", Width: 640, Height: 360, VideoBitrate: 800_000, AudioBitrate: 96_000},
		{Name: "480p", Width: 854, Height: 480, VideoBitrate: 1_200_000, AudioBitrate: 128_000},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrate: 2_500_000, AudioBitrate: 128_000},
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: 5_000_000, AudioBitrate: 192_000},
	}
}

// ValidateLadder checks every rendition and rejects duplicate names.
func ValidateLadder(ladder []Rendition) error {
	if len(ladder) == 0 {
		return errors.New("bitrate ladder is empty")
	}
	seen := make(map[string]struct{}, len(ladder))
	for _, rendition := range ladder {
		if err := rendition.Validate(); err != nil {
			return err
		}
		if _, ok := seen[rendition.Name]; ok {
			return fmt.Errorf("duplicate rendition name %q", rendition.Name)
		}
		seen[rendition.Name] = struct{}{}
	}
	return nil
}

// ParseBitrate converts a human bitrate string into bits per second.
// Accepted forms: plain integers ("464000"), kilobit suffixes ("800k",
// "800K"), and megabit suffixes ("2.5M" is rejected; only integral
// megabits such as "5M" are allowed to keep manifest math exact).
func ParseBitrate(value string) (int, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, errors.New("empty bitrate")
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(cleaned, "k"), strings.HasSuffix(cleaned, "K"):
		multiplier = 1_000
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "m"), strings.HasSuffix(cleaned, "M"):
		multiplier = 1_000_000
		cleaned = cleaned[:len(cleaned)-1]
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(cleaned))
	if err != nil {
		return 0, fmt.Errorf("parse bitrate %q: %w", value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("bitrate %q must be positive", value)
	}
	return parsed * multiplier, nil
}

// FormatBitrate renders bits per second back into the compact form used
// in configuration files and log lines.
func FormatBitrate(bps int) string {
	switch {
	case bps >= 1_000_000 && bps%1_000_000 == 0:
		return fmt.Sprintf("%dM", bps/1_000_000)
	case bps >= 1_000 && bps%1_000 == 0:
		return fmt.Sprintf("%dk", bps/1_000)
	default:
		return strconv.Itoa(bps)
	}
}

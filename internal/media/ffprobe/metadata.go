package ffprobe

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// UnknownCodec is the placeholder recorded when a codec cannot be
// determined.
const UnknownCodec = "unknown"

// Metadata is the best-effort description of a source video. Every
// field is optional: probing failures leave the defaults in place
// (zeroes and "unknown" codecs) and never block packaging.
type Metadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	BitRate         int64   `json:"bit_rate"`
	Codec           string  `json:"codec"`
	AudioCodec      string  `json:"audio_codec"`
	FrameRate       int     `json:"frame_rate"`
}

// DefaultMetadata returns the zero-value metadata with codec fields set
// to the "unknown" placeholder.
func DefaultMetadata() Metadata {
	return Metadata{Codec: UnknownCodec, AudioCodec: UnknownCodec}
}

// Probe inspects the source and folds the result into a Metadata value.
// On any error the defaults are returned alongside the error; callers
// treat the error as non-fatal.
func Probe(ctx context.Context, binary string, path string) (Metadata, error) {
	meta := DefaultMetadata()
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return meta, err
	}
	meta.Merge(result)
	return meta, nil
}

// Merge applies probe results onto the metadata field-by-field. Probed
// values override defaults, never the other way around: fields the
// probe could not determine keep their current values.
func (m *Metadata) Merge(result Result) {
	if d := result.DurationSeconds(); d > 0 {
		m.DurationSeconds = d
	}
	if s := result.SizeBytes(); s > 0 {
		m.SizeBytes = s
	}
	if b := result.BitRate(); b > 0 {
		m.BitRate = b
	}
	if video, ok := result.FirstVideoStream(); ok {
		if video.Width > 0 {
			m.Width = video.Width
		}
		if video.Height > 0 {
			m.Height = video.Height
		}
		if codec := strings.TrimSpace(video.CodecName); codec != "" {
			m.Codec = codec
		}
		if rate, ok := ParseFrameRate(video.AvgFrameRate); ok {
			m.FrameRate = rate
		} else if rate, ok := ParseFrameRate(video.RFrameRate); ok {
			m.FrameRate = rate
		}
	}
	if audio, ok := result.FirstAudioStream(); ok {
		if codec := strings.TrimSpace(audio.CodecName); codec != "" {
			m.AudioCodec = codec
		}
	}
}

// ParseFrameRate reduces an ffprobe frame-rate expression to an integer
// frames-per-second value by rounding. Accepted forms are rational
// strings ("30000/1001") and plain numbers ("25").
func ParseFrameRate(value string) (int, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "0/0" {
		return 0, false
	}

	numerator, denominator := cleaned, ""
	if idx := strings.IndexByte(cleaned, '/'); idx >= 0 {
		numerator, denominator = cleaned[:idx], cleaned[idx+1:]
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(numerator), 64)
	if err != nil || num <= 0 {
		return 0, false
	}
	den := 1.0
	if denominator != "" {
		den, err = strconv.ParseFloat(strings.TrimSpace(denominator), 64)
		if err != nil || den <= 0 {
			return 0, false
		}
	}

	rate := int(math.Round(num / den))
	if rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Package ffmpeg wraps the external ffmpeg binary behind the encode
// and thumbnail capabilities the pipeline consumes.
//
// Encode produces one HLS rendition (segment files plus variant
// playlist) and streams fractional progress parsed from ffmpeg's
// -progress output. ExtractFrame grabs a single still image. Both are
// plain process wrappers; no media math happens here.
package ffmpeg

// Package ffprobe provides a typed wrapper around ffprobe JSON output
// and the best-effort source metadata model built from it.
//
// Probing only enriches job metadata; it never gates the pipeline. Any
// inspection failure leaves Metadata fields at their documented
// defaults (zero values, "unknown" codecs).
package ffprobe

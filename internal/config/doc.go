// Package config loads, validates, and normalizes hlspack
// configuration from TOML.
//
// Configuration sections:
//   - [paths]: output, state, and log directories
//   - [ffmpeg]: external binary names and segmenting parameters
//   - [pipeline]: encode timeout, thumbnail, and preflight settings
//   - [jobs]: retention and cleanup cadence for the job registry
//   - [logging]: log format and level
//   - [[ladder]]: the bitrate ladder; omitted entries fall back to the
//     built-in five-rung ladder
package config

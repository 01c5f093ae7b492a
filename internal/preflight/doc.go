// Package preflight provides readiness checks for the external tools
// and filesystem paths the packaging pipeline depends on.
//
// The process command runs RunAll before submitting a job so an absent
// ffmpeg or a full disk fails fast instead of partway through an
// encode. The individual check functions are also usable on their own.
package preflight

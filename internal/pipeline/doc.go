// Package pipeline turns one source video into a multi-rendition HLS
// bundle and tracks the job through the registry.
//
// The Manager creates a job record, probes the source for metadata,
// fans out one encode per ladder entry into per-rendition directories,
// folds fractional encode progress into a single job percentage, and
// on joint success writes the master playlist and an optional
// thumbnail. Any single rendition failure fails the whole job; probe
// and thumbnail failures never do. A background sweeper evicts
// terminal jobs past the configured retention age.
package pipeline

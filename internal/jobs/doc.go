// Package jobs persists transcode job records in SQLite and owns the
// job state machine.
//
// Lifecycle: pending -> processing -> completed | failed. Both terminal
// states are absorbing; the store enforces transitions and progress
// monotonicity in SQL so concurrent writers cannot regress a job.
// Completed and failed jobs are retained until an age-based eviction
// sweep removes them; running jobs are never evicted.
package jobs

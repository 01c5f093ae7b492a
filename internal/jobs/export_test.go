package jobs

import (
	"context"
	"time"
)

// SetCompletedAt backdates a job's completion timestamp for eviction
// tests.
func (s *Store) SetCompletedAt(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs SET completed_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout),
		id,
	)
	return err
}

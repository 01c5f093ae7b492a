package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hlspack/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout pads fractional seconds to a fixed width so the TEXT
// columns compare lexicographically in chronological order. RFC3339Nano
// trims trailing zeros, which breaks ordering at sub-second precision.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a job id has no record. Status-query
// callers surface it as a not-found result, not a fault.
var ErrNotFound = errors.New("job not found")

// Store manages transcode job persistence backed by SQLite. Writes to
// the same job are serialized by the database; reads always observe a
// committed row, never a torn update.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database and applies the
// schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the jobs database.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Create inserts a new pending job. The job is visible to lookups
// before any encode work starts.
func (s *Store) Create(ctx context.Context, videoID, sourcePath, outputDir string) (*Job, error) {
	if videoID == "" {
		return nil, errors.New("video id required")
	}
	if sourcePath == "" {
		return nil, errors.New("source path required")
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transcode_jobs (
            id, video_id, source_path, output_dir, status,
            progress_percent, output_paths, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		videoID,
		sourcePath,
		outputDir,
		StatusPending,
		0,
		"[]",
		now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a job by identifier. Returns ErrNotFound when no record
// exists.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcode_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns all jobs ordered by submission time.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM transcode_jobs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var list []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, job)
	}
	return list, rows.Err()
}

// MarkProcessing transitions a pending job into processing. The WHERE
// guard makes the transition idempotent-safe: a job that already left
// pending is not touched.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs SET status = ? WHERE id = ? AND status = ?`,
		StatusProcessing, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return requireAffected(res, id)
}

// UpdateProgress folds a new progress percentage into a processing job.
// The stored value only ever increases: a late, smaller update for an
// earlier rendition cannot regress what a status caller already saw.
// Updates for jobs that are not processing are dropped silently.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs
         SET progress_percent = MAX(progress_percent, ?)
         WHERE id = ? AND status = ?`,
		percent, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// SetMetadata records probe metadata on the job. Best-effort: jobs in a
// terminal state are left untouched.
func (s *Store) SetMetadata(ctx context.Context, id string, metadataJSON string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs SET metadata_json = ? WHERE id = ? AND status IN (?, ?)`,
		metadataJSON, id, StatusPending, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	return nil
}

// AppendOutputPath records a durably written artifact on the job. The
// read-modify-write runs in one transaction so concurrent appends for
// the same job never lose entries.
func (s *Store) AppendOutputPath(ctx context.Context, id string, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	row := tx.QueryRowContext(ctx, `SELECT output_paths FROM transcode_jobs WHERE id = ?`, id)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("read output paths: %w", err)
	}

	paths, err := decodeOutputPaths(raw)
	if err != nil {
		return err
	}
	paths = append(paths, path)
	encoded, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encode output paths: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE transcode_jobs SET output_paths = ? WHERE id = ?`, string(encoded), id); err != nil {
		return fmt.Errorf("write output paths: %w", err)
	}
	return tx.Commit()
}

// MarkCompleted transitions a processing job into the completed
// terminal state with progress forced to 100.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs
         SET status = ?, progress_percent = 100, completed_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		time.Now().UTC().Format(timeLayout),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireAffected(res, id)
}

// MarkFailed transitions a job into the failed terminal state. Jobs
// already in a terminal state are left untouched.
func (s *Store) MarkFailed(ctx context.Context, id string, message string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs
         SET status = ?, error_message = ?, completed_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		message,
		time.Now().UTC().Format(timeLayout),
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireAffected(res, id)
}

// EvictCompletedBefore removes every terminal job whose completed_at is
// older than the cutoff. Jobs without a completed_at (still running)
// are never evicted regardless of age.
func (s *Store) EvictCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM transcode_jobs WHERE completed_at IS NOT NULL AND completed_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("evict jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM transcode_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, video_id, source_path, output_dir, status, progress_percent, error_message, metadata_json, output_paths, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		videoID      string
		sourcePath   string
		outputDir    string
		statusStr    string
		progress     int
		errorMessage sql.NullString
		metadata     sql.NullString
		outputPaths  string
		startedRaw   string
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&sourcePath,
		&outputDir,
		&statusStr,
		&progress,
		&errorMessage,
		&metadata,
		&outputPaths,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	paths, err := decodeOutputPaths(outputPaths)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		VideoID:         videoID,
		SourcePath:      sourcePath,
		OutputDir:       outputDir,
		Status:          Status(statusStr),
		ProgressPercent: progress,
		ErrorMessage:    errorMessage.String,
		MetadataJSON:    metadata.String,
		OutputPaths:     paths,
	}

	if started, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		job.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := time.Parse(time.RFC3339Nano, completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func decodeOutputPaths(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, fmt.Errorf("decode output paths: %w", err)
	}
	return paths, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s (or transition not permitted)", ErrNotFound, id)
	}
	return nil
}

package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hlspack/internal/jobs"
	"hlspack/internal/testsupport"
)

func newJob(t *testing.T, store *jobs.Store, videoID string) *jobs.Job {
	t.Helper()
	job, err := store.Create(context.Background(), videoID, "/media/"+videoID+".mp4", "/out/"+videoID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return job
}

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-1")
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("new job should be pending, got %s", job.Status)
	}
	if job.ProgressPercent != 0 {
		t.Fatalf("new job progress should be 0, got %d", job.ProgressPercent)
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.VideoID != "video-1" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestGetUnknownID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Get(context.Background(), "no-such-job")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRequiresVideoID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Create(context.Background(), "", "/media/a.mp4", "/out/a"); err == nil {
		t.Fatal("expected error when video id missing")
	}
}

func TestStatusTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-transitions")

	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, job.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	completed, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if completed.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.ProgressPercent != 100 {
		t.Fatalf("completion must force progress to 100, got %d", completed.ProgressPercent)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	// Terminal states are absorbing.
	if err := store.MarkFailed(ctx, job.ID, "late failure"); err == nil {
		t.Fatal("expected MarkFailed on a completed job to be rejected")
	}
	unchanged, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if unchanged.Status != jobs.StatusCompleted || unchanged.ErrorMessage != "" {
		t.Fatalf("terminal job mutated: %#v", unchanged)
	}
}

func TestMarkCompletedRequiresProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-pending")
	if err := store.MarkCompleted(ctx, job.ID); err == nil {
		t.Fatal("expected completing a pending job to be rejected")
	}
}

func TestMarkFailedRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-fail")
	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "encode 360p: exit status 1"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	failed, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if failed.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.ErrorMessage != "encode 360p: exit status 1" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil {
		t.Fatal("failed jobs must record completed_at for eviction")
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-progress")
	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	for _, percent := range []int{10, 45, 30, 45, 20} {
		if err := store.UpdateProgress(ctx, job.ID, percent); err != nil {
			t.Fatalf("UpdateProgress(%d) failed: %v", percent, err)
		}
	}

	current, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.ProgressPercent != 45 {
		t.Fatalf("expected max progress 45, got %d", current.ProgressPercent)
	}
}

func TestProgressIgnoredBeforeProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-early")
	if err := store.UpdateProgress(ctx, job.ID, 50); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	current, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.ProgressPercent != 0 {
		t.Fatalf("pending job progress should stay 0, got %d", current.ProgressPercent)
	}
}

func TestAppendOutputPathConcurrent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "video-outputs")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := store.AppendOutputPath(ctx, job.ID, fmt.Sprintf("/out/video-outputs/p%d/playlist.m3u8", n)); err != nil {
				t.Errorf("AppendOutputPath: %v", err)
			}
		}(i)
	}
	wg.Wait()

	current, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(current.OutputPaths) != writers {
		t.Fatalf("expected %d output paths, got %d: %v", writers, len(current.OutputPaths), current.OutputPaths)
	}
}

func TestEvictionBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()

	old := newJob(t, store, "video-old")
	recent := newJob(t, store, "video-recent")
	running := newJob(t, store, "video-running")

	for _, job := range []*jobs.Job{old, recent} {
		if err := store.MarkProcessing(ctx, job.ID); err != nil {
			t.Fatalf("MarkProcessing failed: %v", err)
		}
		if err := store.MarkCompleted(ctx, job.ID); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}
	if err := store.SetCompletedAt(ctx, old.ID, now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("SetCompletedAt failed: %v", err)
	}
	if err := store.SetCompletedAt(ctx, recent.ID, now.Add(-23*time.Hour)); err != nil {
		t.Fatalf("SetCompletedAt failed: %v", err)
	}
	if err := store.MarkProcessing(ctx, running.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	evicted, err := store.EvictCompletedBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("EvictCompletedBefore failed: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 evicted job, got %d", evicted)
	}

	if _, err := store.Get(ctx, old.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected 25h-old job to be evicted, got %v", err)
	}
	if _, err := store.Get(ctx, recent.ID); err != nil {
		t.Fatalf("23h-old job should remain: %v", err)
	}
	if _, err := store.Get(ctx, running.ID); err != nil {
		t.Fatalf("running job must never be evicted: %v", err)
	}
}

func TestEvictionSubSecondBoundary(t *testing.T) {
	// Fractional seconds of different lengths must still compare
	// chronologically in the stored TEXT columns.
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	older := newJob(t, store, "video-older")
	newer := newJob(t, store, "video-newer")
	for _, job := range []*jobs.Job{older, newer} {
		if err := store.MarkProcessing(ctx, job.ID); err != nil {
			t.Fatalf("MarkProcessing failed: %v", err)
		}
		if err := store.MarkCompleted(ctx, job.ID); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}
	if err := store.SetCompletedAt(ctx, older.ID, base.Add(120*time.Millisecond)); err != nil {
		t.Fatalf("SetCompletedAt failed: %v", err)
	}
	if err := store.SetCompletedAt(ctx, newer.ID, base.Add(123*time.Millisecond)); err != nil {
		t.Fatalf("SetCompletedAt failed: %v", err)
	}

	evicted, err := store.EvictCompletedBefore(ctx, base.Add(122*time.Millisecond))
	if err != nil {
		t.Fatalf("EvictCompletedBefore failed: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 evicted job, got %d", evicted)
	}
	if _, err := store.Get(ctx, older.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected .120s job to be evicted, got %v", err)
	}
	if _, err := store.Get(ctx, newer.ID); err != nil {
		t.Fatalf(".123s job should remain: %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := newJob(t, store, "video-a")
	second := newJob(t, store, "video-b")

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("jobs not ordered by submission time: %v, %v", list[0].VideoID, list[1].VideoID)
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	newJob(t, store, "video-p")
	processing := newJob(t, store, "video-q")
	if err := store.MarkProcessing(ctx, processing.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

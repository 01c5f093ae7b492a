package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hlspack/internal/hls"
	"hlspack/internal/jobs"
	"hlspack/internal/logging"
	"hlspack/internal/media/ffprobe"
	"hlspack/internal/services/ffmpeg"
)

// run drives a single job from processing to a terminal state.
func (m *Manager) run(ctx context.Context, job *jobs.Job) {
	logger := m.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
	)

	if timeout := m.encodeTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// Registry writes must land even after a timeout or shutdown so
	// the job record reflects what actually happened.
	storeCtx := context.WithoutCancel(ctx)

	if err := m.store.MarkProcessing(storeCtx, job.ID); err != nil {
		logger.Error("mark processing failed", logging.Error(err))
		return
	}
	logger.Info("job started",
		logging.String("source", job.SourcePath),
		logging.Int("renditions", len(m.ladder)),
	)

	// Probe concurrently; encode progress never waits on it.
	var (
		probeWG sync.WaitGroup
		meta    = ffprobe.DefaultMetadata()
		metaMu  sync.Mutex
	)
	probeDuration := func() float64 {
		metaMu.Lock()
		defer metaMu.Unlock()
		return meta.DurationSeconds
	}
	probeWG.Add(1)
	go func() {
		defer probeWG.Done()
		probed, err := m.prober.Probe(ctx, job.SourcePath)
		if err != nil {
			logger.Warn("probe failed, keeping default metadata", logging.Error(err))
		}
		metaMu.Lock()
		meta = probed
		metaMu.Unlock()
		if encoded, err := json.Marshal(probed); err == nil {
			if err := m.store.SetMetadata(storeCtx, job.ID, string(encoded)); err != nil {
				logger.Warn("persist metadata failed", logging.Error(err))
			}
		}
	}()

	encodeErr := m.encodeLadder(ctx, job, logger, probeDuration)

	probeWG.Wait()

	if encodeErr != nil {
		logger.Error("job failed", logging.Error(encodeErr))
		if err := m.store.MarkFailed(storeCtx, job.ID, encodeErr.Error()); err != nil {
			logger.Error("mark failed failed", logging.Error(err))
		}
		return
	}

	masterPath, err := hls.WriteMaster(job.OutputDir, m.ladder)
	if err != nil {
		logger.Error("write master playlist failed", logging.Error(err))
		if err := m.store.MarkFailed(storeCtx, job.ID, err.Error()); err != nil {
			logger.Error("mark failed failed", logging.Error(err))
		}
		return
	}
	if err := m.store.AppendOutputPath(storeCtx, job.ID, masterPath); err != nil {
		logger.Warn("record master playlist failed", logging.Error(err))
	}

	m.extractThumbnail(ctx, job, logger, probeDuration())

	if err := m.store.MarkCompleted(storeCtx, job.ID); err != nil {
		logger.Error("mark completed failed", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.String("master", masterPath))
}

// encodeLadder fans out one encode per rendition and joins on all of
// them. The first error is returned; in-flight siblings run to
// completion but their results are discarded.
func (m *Manager) encodeLadder(ctx context.Context, job *jobs.Job, logger *slog.Logger, duration func() float64) error {
	total := len(m.ladder)
	storeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for index, rendition := range m.ladder {
		index, rendition := index, rendition
		g.Go(func() error {
			renditionLogger := logger.With(logging.String(logging.FieldRendition, rendition.Name))
			req := ffmpeg.EncodeRequest{
				InputPath:       job.SourcePath,
				OutputDir:       filepath.Dir(hls.VariantPlaylistPath(job.OutputDir, rendition)),
				Rendition:       rendition,
				SegmentSeconds:  m.cfg.FFmpeg.SegmentSeconds,
				Preset:          m.cfg.FFmpeg.Preset,
				DurationSeconds: duration(),
			}
			started := time.Now()
			playlist, err := m.encoder.Encode(ctx, req, func(update ffmpeg.ProgressUpdate) {
				percent := int(math.Round(100 * (float64(index) + update.Fraction) / float64(total)))
				if err := m.store.UpdateProgress(storeCtx, job.ID, percent); err != nil {
					renditionLogger.Warn("progress update failed", logging.Error(err))
				}
			})
			if err != nil {
				return err
			}
			renditionLogger.Info("rendition encoded",
				logging.String("playlist", playlist),
				logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
			)
			if err := m.store.AppendOutputPath(storeCtx, job.ID, playlist); err != nil {
				renditionLogger.Warn("record variant playlist failed", logging.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// extractThumbnail grabs a representative frame. Every failure here is
// logged and swallowed; thumbnails never change the job outcome.
func (m *Manager) extractThumbnail(ctx context.Context, job *jobs.Job, logger *slog.Logger, durationSeconds float64) {
	if !m.cfg.Pipeline.ThumbnailEnabled {
		return
	}
	offset := ffmpeg.FrameOffset(durationSeconds, m.cfg.Pipeline.ThumbnailFraction)
	target := filepath.Join(job.OutputDir, ffmpeg.ThumbnailName)
	path, err := m.extractor.ExtractFrame(ctx, job.SourcePath, target, offset)
	if err != nil {
		logger.Warn("thumbnail extraction failed", logging.Error(err))
		return
	}
	if err := m.store.AppendOutputPath(context.WithoutCancel(ctx), job.ID, path); err != nil {
		logger.Warn("record thumbnail failed", logging.Error(err))
	}
}

// runSweeper periodically evicts terminal jobs older than the
// configured retention window.
func (m *Manager) runSweeper(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Cleanup(ctx, time.Duration(m.cfg.Jobs.RetentionHours)*time.Hour); err != nil {
				m.logger.Warn("job eviction failed", logging.Error(err))
			}
		}
	}
}

// Cleanup evicts terminal jobs whose completion is older than maxAge
// and returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	evicted, err := m.store.EvictCompletedBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if evicted > 0 {
		m.logger.Info("evicted old jobs", logging.Int64("count", evicted))
	}
	return evicted, nil
}

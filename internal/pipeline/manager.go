package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"hlspack/internal/config"
	"hlspack/internal/hls"
	"hlspack/internal/jobs"
	"hlspack/internal/logging"
	"hlspack/internal/media/ffprobe"
	"hlspack/internal/services/ffmpeg"
)

// Prober inspects a source file for container metadata. Probe failures
// are always non-fatal; callers fall back to default metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Metadata, error)
}

type binaryProber struct {
	binary string
}

func (p binaryProber) Probe(ctx context.Context, path string) (ffprobe.Metadata, error) {
	return ffprobe.Probe(ctx, p.binary, path)
}

// Manager drives submitted sources through probe, encode fan-out,
// playlist assembly, and thumbnail extraction, recording every
// transition in the job store.
type Manager struct {
	cfg       *config.Config
	store     *jobs.Store
	logger    *slog.Logger
	encoder   ffmpeg.Client
	extractor ffmpeg.Extractor
	prober    Prober
	ladder    []hls.Rendition

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	runCtx  context.Context
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithEncoder overrides the encode client (used in tests).
func WithEncoder(client ffmpeg.Client) ManagerOption {
	return func(m *Manager) { m.encoder = client }
}

// WithExtractor overrides the thumbnail extractor (used in tests).
func WithExtractor(extractor ffmpeg.Extractor) ManagerOption {
	return func(m *Manager) { m.extractor = extractor }
}

// WithProber overrides the metadata prober (used in tests).
func WithProber(prober Prober) ManagerOption {
	return func(m *Manager) { m.prober = prober }
}

// WithLadder overrides the bitrate ladder.
func WithLadder(ladder []hls.Rendition) ManagerOption {
	return func(m *Manager) { m.ladder = ladder }
}

// NewManager constructs a pipeline manager from the configuration. The
// ladder comes from config (or the built-in default when none is
// configured) and the ffmpeg/ffprobe binaries back the encode, probe,
// and thumbnail capabilities unless options replace them.
func NewManager(cfg *config.Config, store *jobs.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if store == nil {
		return nil, errors.New("job store required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ladder, err := cfg.Renditions()
	if err != nil {
		return nil, fmt.Errorf("resolve ladder: %w", err)
	}

	cli := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpeg.FFmpegBinary))
	m := &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logging.WithComponent(logger, "pipeline"),
		encoder:   cli,
		extractor: cli,
		prober:    binaryProber{binary: cfg.FFmpeg.FFprobeBinary},
		ladder:    ladder,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := hls.ValidateLadder(m.ladder); err != nil {
		return nil, err
	}
	return m, nil
}

// Start begins background processing. Submissions are rejected until
// Start has been called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true

	if interval := m.cleanupInterval(); interval > 0 {
		m.wg.Add(1)
		go m.runSweeper(runCtx, interval)
	}
	return nil
}

// Stop cancels in-flight work and waits for all job goroutines and the
// sweeper to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.runCtx = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Ladder returns the renditions this manager encodes, in emission order.
func (m *Manager) Ladder() []hls.Rendition {
	out := make([]hls.Rendition, len(m.ladder))
	copy(out, m.ladder)
	return out
}

// Submit registers a new job for the source and returns its record
// immediately; encoding continues asynchronously. The job is visible
// to lookups before any work starts.
func (m *Manager) Submit(ctx context.Context, sourcePath, videoID string) (*jobs.Job, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, errors.New("pipeline not running")
	}
	runCtx := m.runCtx
	// Reserve the goroutine slot while the lock is still held so a
	// concurrent Stop cannot pass wg.Wait before this submission's
	// goroutine is accounted for.
	m.wg.Add(1)
	m.mu.Unlock()

	if _, err := os.Stat(sourcePath); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("source file: %w", err)
	}
	outputDir := m.cfg.OutputDirFor(videoID)

	job, err := m.store.Create(ctx, videoID, sourcePath, outputDir)
	if err != nil {
		m.wg.Done()
		return nil, err
	}

	go func() {
		defer m.wg.Done()
		m.run(runCtx, job)
	}()
	return job, nil
}

func (m *Manager) cleanupInterval() time.Duration {
	if m.cfg.Jobs.CleanupIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(m.cfg.Jobs.CleanupIntervalMinutes) * time.Minute
}

func (m *Manager) encodeTimeout() time.Duration {
	if m.cfg.Pipeline.EncodeTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(m.cfg.Pipeline.EncodeTimeoutMinutes) * time.Minute
}

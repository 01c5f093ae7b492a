package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"hlspack/internal/config"
	"hlspack/internal/jobs"
	"hlspack/internal/pipeline"
	"hlspack/internal/preflight"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var videoID string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "process <source-file>",
		Short: "Transcode a source video into an HLS rendition ladder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sourcePath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			id := strings.TrimSpace(videoID)
			if id == "" {
				id = deriveVideoID(sourcePath)
			}

			// One encoding run at a time; concurrent runs would
			// fight over CPU and the rendition directories.
			lockPath := filepath.Join(cfg.Paths.LogDir, "hlspack.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another hlspack process is already running (lock: %s)", lockPath)
			}
			defer lock.Unlock()

			if !skipPreflight {
				if err := preflight.Error(preflight.RunAll(cmd.Context(), cfg)); err != nil {
					return fmt.Errorf("preflight: %w", err)
				}
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				mgr, err := pipeline.NewManager(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := mgr.Start(runCtx); err != nil {
					return err
				}
				defer mgr.Stop()

				job, err := mgr.Submit(runCtx, sourcePath, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s started for %s (%d renditions)\n",
					job.ID, id, len(mgr.Ladder()))

				final, err := watchJob(runCtx, store, job.ID, cmd)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, final)
			})
		},
	}

	cmd.Flags().StringVar(&videoID, "video-id", "", "Identifier for the output directory (defaults to the source basename)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip binary and disk-space checks")
	return cmd
}

// watchJob polls the registry until the job reaches a terminal state,
// rewriting a progress line on interactive terminals.
func watchJob(ctx context.Context, store *jobs.Store, jobID string, cmd *cobra.Command) (*jobs.Job, error) {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastPercent := -1
	for {
		job, err := store.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == jobs.StatusProcessing && job.ProgressPercent != lastPercent {
			lastPercent = job.ProgressPercent
			if interactive {
				fmt.Fprintf(cmd.OutOrStdout(), "\rEncoding... %3d%%", job.ProgressPercent)
			}
		}
		if !job.IsRunning() {
			if interactive && lastPercent >= 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func reportOutcome(cmd *cobra.Command, job *jobs.Job) error {
	out := cmd.OutOrStdout()
	switch job.Status {
	case jobs.StatusCompleted:
		fmt.Fprintf(out, "Job %s completed\n", job.ID)
		for _, path := range job.OutputPaths {
			fmt.Fprintf(out, "  %s\n", path)
		}
		return nil
	case jobs.StatusFailed:
		return fmt.Errorf("job %s failed: %s", job.ID, job.ErrorMessage)
	default:
		return fmt.Errorf("job %s ended in unexpected state %s", job.ID, job.Status)
	}
}

// deriveVideoID turns a source filename into a filesystem-safe id.
func deriveVideoID(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if base == "" {
		base = "video"
	}
	return base
}

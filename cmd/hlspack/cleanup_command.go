package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hlspack/internal/config"
	"hlspack/internal/jobs"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict terminal jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				hours := maxAgeHours
				if hours <= 0 {
					hours = cfg.Jobs.RetentionHours
				}
				cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
				evicted, err := store.EvictCompletedBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d job(s) older than %dh\n", evicted, hours)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age", 0, "Retention in hours (defaults to the configured retention)")
	return cmd
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hlspack/internal/config"
	"hlspack/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List transcode jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				list, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if statusFilter != "" {
					wanted, ok := jobs.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					filtered := list[:0]
					for _, job := range list {
						if job.Status == wanted {
							filtered = append(filtered, job)
						}
					}
					list = filtered
				}

				if jsonOutput {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						job.ID,
						job.VideoID,
						string(job.Status),
						strconv.Itoa(job.ProgressPercent) + "%",
						job.StartedAt.Local().Format(time.DateTime),
						formatCompletedAt(job),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "VIDEO", "STATUS", "PROGRESS", "STARTED", "COMPLETED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func formatCompletedAt(job *jobs.Job) string {
	if job.CompletedAt == nil {
		return "-"
	}
	return job.CompletedAt.Local().Format(time.DateTime)
}

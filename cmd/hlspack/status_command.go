package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hlspack/internal/config"
	"hlspack/internal/jobs"
	"hlspack/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show environment checks and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				checks := preflight.RunAll(cmd.Context(), cfg)
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, struct {
						Database string             `json:"database"`
						Checks   []preflight.Result `json:"checks"`
						Health   jobs.HealthSummary `json:"health"`
					}{Database: store.Path(), Checks: checks, Health: health})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n\n", store.Path())
				checkRows := make([][]string, 0, len(checks))
				for _, check := range checks {
					checkRows = append(checkRows, []string{check.Name, passFail(check.Passed), check.Detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"CHECK", "OK", "DETAIL"},
					checkRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				statuses := jobs.AllStatuses()
				statRows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					statRows = append(statRows, []string{string(status), strconv.Itoa(stats[status])})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"STATUS", "JOBS"},
					statRows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func passFail(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

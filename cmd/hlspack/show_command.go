package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"hlspack/internal/config"
	"hlspack/internal/jobs"
	"hlspack/internal/media/ffprobe"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:       %s\n", job.ID)
				fmt.Fprintf(out, "Video:     %s\n", job.VideoID)
				fmt.Fprintf(out, "Source:    %s\n", job.SourcePath)
				fmt.Fprintf(out, "Output:    %s\n", job.OutputDir)
				fmt.Fprintf(out, "Status:    %s\n", job.Status)
				fmt.Fprintf(out, "Progress:  %d%%\n", job.ProgressPercent)
				fmt.Fprintf(out, "Started:   %s\n", job.StartedAt.Local().Format(time.DateTime))
				if job.CompletedAt != nil {
					fmt.Fprintf(out, "Completed: %s\n", job.CompletedAt.Local().Format(time.DateTime))
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
				}
				printMetadata(cmd, job.MetadataJSON)
				if len(job.OutputPaths) > 0 {
					fmt.Fprintln(out, "Outputs:")
					for _, path := range job.OutputPaths {
						fmt.Fprintf(out, "  %s\n", path)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func printMetadata(cmd *cobra.Command, metadataJSON string) {
	if metadataJSON == "" {
		return
	}
	var meta ffprobe.Metadata
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
		return
	}
	out := cmd.OutOrStdout()
	printer := message.NewPrinter(language.English)
	fmt.Fprintln(out, "Metadata:")
	fmt.Fprintf(out, "  Duration:   %.1fs\n", meta.DurationSeconds)
	fmt.Fprintf(out, "  Resolution: %dx%d\n", meta.Width, meta.Height)
	fmt.Fprintf(out, "  Codec:      %s / %s\n", meta.Codec, meta.AudioCodec)
	printer.Fprintf(out, "  Bitrate:    %d bps\n", meta.BitRate)
	printer.Fprintf(out, "  Size:       %d bytes\n", meta.SizeBytes)
	fmt.Fprintf(out, "  Framerate:  %d fps\n", meta.FrameRate)
}

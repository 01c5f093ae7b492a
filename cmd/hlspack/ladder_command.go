package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"hlspack/internal/hls"
)

func newLadderCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Show the effective bitrate ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ladder, err := cfg.Renditions()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, ladder)
			}

			printer := message.NewPrinter(language.English)
			rows := make([][]string, 0, len(ladder))
			for _, rendition := range ladder {
				rows = append(rows, []string{
					rendition.Name,
					rendition.Resolution(),
					hls.FormatBitrate(rendition.VideoBitrate),
					hls.FormatBitrate(rendition.AudioBitrate),
					printer.Sprintf("%d", rendition.Bandwidth()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"NAME", "RESOLUTION", "VIDEO", "AUDIO", "BANDWIDTH"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

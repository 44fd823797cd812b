package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/catalog"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.json|manifest.yaml>...",
		Short: "Import analyzed videos from manifest files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			out := cmd.OutOrStdout()

			var rows [][]string
			for _, path := range args {
				reqs, err := catalog.LoadManifest(path)
				if err != nil {
					return err
				}
				for _, req := range reqs {
					video, err := client.ImportVideo(cmd.Context(), req)
					if err != nil {
						return fmt.Errorf("import %s: %w", req.Filename, wrapConnectError(err, ctx.apiURL()))
					}
					rows = append(rows, []string{
						video.ID,
						video.Filename,
						fmt.Sprintf("%d", len(req.Scenes)),
						fmt.Sprintf("%d", len(req.Transcripts)),
					})
				}
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Filename", "Scenes", "Transcripts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/apiclient"
	"github.com/heimdex/heimdex-player/internal/export"
)

type exportOptions struct {
	title         string
	frameRate     float64
	sceneIDs      []string
	transcriptIDs []string
	videoID       string
	outDir        string
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export selected scenes as an EDL or subtitles as SRT",
	}
	cmd.AddCommand(newExportEDLCommand(ctx), newExportSRTCommand(ctx))
	return cmd
}

func addExportFlags(cmd *cobra.Command, opts *exportOptions) {
	cmd.Flags().StringVar(&opts.title, "title", "", "Title written into the export")
	cmd.Flags().Float64Var(&opts.frameRate, "fps", 0, "Frame rate (defaults to the server's)")
	cmd.Flags().StringSliceVar(&opts.sceneIDs, "scene", nil, "Scene ID in timeline order (repeatable)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory to write the file into")
}

func newExportEDLCommand(ctx *commandContext) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "edl",
		Short: "Export scenes as a CMX3600 edit decision list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.sceneIDs) == 0 {
				return errors.New("at least one --scene is required")
			}
			return runExport(cmd.Context(), ctx, opts, cmd.OutOrStdout(), func(ctx context.Context, c *apiclient.Client) (*apiclient.File, error) {
				return c.ExportEDL(ctx, export.EDLRequest{
					Title:     opts.title,
					FrameRate: opts.frameRate,
					SceneIDs:  opts.sceneIDs,
				})
			})
		},
	}
	addExportFlags(cmd, &opts)
	return cmd
}

func newExportSRTCommand(ctx *commandContext) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "srt",
		Short: "Export transcripts as SubRip subtitles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.sceneIDs) == 0 && len(opts.transcriptIDs) == 0 && opts.videoID == "" {
				return errors.New("one of --scene, --transcript or --video is required")
			}
			return runExport(cmd.Context(), ctx, opts, cmd.OutOrStdout(), func(ctx context.Context, c *apiclient.Client) (*apiclient.File, error) {
				return c.ExportSRT(ctx, export.SRTRequest{
					Title:         opts.title,
					FrameRate:     opts.frameRate,
					VideoID:       opts.videoID,
					SceneIDs:      opts.sceneIDs,
					TranscriptIDs: opts.transcriptIDs,
				})
			})
		},
	}
	addExportFlags(cmd, &opts)
	cmd.Flags().StringSliceVar(&opts.transcriptIDs, "transcript", nil, "Transcript ID (repeatable)")
	cmd.Flags().StringVar(&opts.videoID, "video", "", "Export every transcript of this video")
	return cmd
}

func runExport(ctx context.Context, cc *commandContext, opts exportOptions, out io.Writer, fetch func(context.Context, *apiclient.Client) (*apiclient.File, error)) error {
	dir, err := export.OutputDir(opts.outDir)
	if err != nil {
		return fmt.Errorf("--out: %w", err)
	}

	file, err := fetch(ctx, cc.client())
	if err != nil {
		return wrapConnectError(err, cc.apiURL())
	}

	path := filepath.Join(dir, export.LocalName(file.Filename))
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes)\n", path, len(file.Data))
	if len(file.Unresolved) > 0 {
		fmt.Fprintf(out, "Skipped %d unresolved scenes: %v\n", len(file.Unresolved), file.Unresolved)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/selection"
	"github.com/heimdex/heimdex-player/internal/timecode"
	"github.com/heimdex/heimdex-player/internal/workspace"
)

func newScenesCommand(ctx *commandContext) *cobra.Command {
	var query, tag string
	var selected []string

	cmd := &cobra.Command{
		Use:   "scenes [video-id]",
		Short: "List videos, or the scenes of one video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listVideos(cmd.Context(), ctx, cmd.OutOrStdout())
			}
			return listScenes(cmd.Context(), ctx, args[0], workspace.Filter{Query: query, Tag: tag}, selected, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Filter by description or scene number")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by evaluation tag")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "Scene IDs to summarize as a selection")
	return cmd
}

func listVideos(ctx context.Context, cc *commandContext, out io.Writer) error {
	videos, err := cc.client().Videos(ctx)
	if err != nil {
		return wrapConnectError(err, cc.apiURL())
	}
	if len(videos) == 0 {
		fmt.Fprintln(out, "No videos imported")
		return nil
	}

	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{v.ID, v.Filename, v.Filepath, dash(v.TimecodeOffset)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Filename", "Path", "Offset"},
		rows,
		nil,
	))
	return nil
}

func listScenes(ctx context.Context, cc *commandContext, videoID string, filter workspace.Filter, selectIDs []string, out io.Writer) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	client := cc.client()

	scenes, err := client.Scenes(ctx, videoID)
	if err != nil {
		return wrapConnectError(err, cc.apiURL())
	}

	set := selection.New()
	known := make(map[string]bool, len(scenes))
	for _, sc := range scenes {
		known[sc.ID] = true
	}
	for _, id := range selectIDs {
		if !known[id] {
			return fmt.Errorf("scene %s is not part of video %s", id, videoID)
		}
		set.Add(id)
	}

	fps := cfg.FrameRate()
	rows := make([][]string, 0, len(scenes))
	for _, sc := range scenes {
		if !filter.Match(sc) {
			continue
		}
		mark := ""
		if set.Contains(sc.ID) {
			mark = "✓"
		}
		rows = append(rows, []string{
			mark,
			fmt.Sprintf("%d", sc.SceneNumber),
			sc.StartTimecode,
			sc.EndTimecode,
			timecode.ToTimecode(sc.Duration(fps), fps),
			dash(sc.EvaluationTag),
			truncate(sc.Description, 48),
			sc.ID,
		})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"", "Scene", "Start", "End", "Length", "Tag", "Description", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))

	st := set.Stats(scenes, filter.Match, fps)
	fmt.Fprintf(out, "%d of %d scenes shown", len(rows), len(scenes))
	if st.Count > 0 {
		fmt.Fprintf(out, ", %d selected (%s)", st.Count, st.TotalTimecode)
	}
	fmt.Fprintln(out)
	return nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

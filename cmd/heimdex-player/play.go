package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/logging"
	"github.com/heimdex/heimdex-player/internal/player"
	"github.com/heimdex/heimdex-player/internal/surface"
	"github.com/heimdex/heimdex-player/internal/workspace"
)

type playOptions struct {
	sceneIDs []string
	all      bool
	query    string
	tag      string
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play <video-id>",
		Short: "Play selected scenes of a video on the connected player surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.sceneIDs) == 0 && !opts.all {
				return errors.New("select scenes with --scene or --all")
			}
			return runPlay(cmd.Context(), ctx, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&opts.sceneIDs, "scene", nil, "Scene ID to play (repeatable)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Play every scene matching the filter")
	cmd.Flags().StringVar(&opts.query, "query", "", "Filter scenes by description or scene number")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Filter scenes by evaluation tag")
	return cmd
}

func runPlay(cmdCtx context.Context, ctx *commandContext, videoID string, opts playOptions, out io.Writer) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	origin, err := ctx.origin()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.WithSurface(ctx.logger(), string(surface.RolePrimary))
	base := ctx.apiURL()

	link, err := surface.Dial(signalCtx, base, surface.RolePrimary, origin)
	if err != nil {
		return wrapConnectError(err, base)
	}
	defer link.Close()

	var ws *workspace.Workspace
	primary := surface.NewPrimary(link, surface.PrimaryOptions{
		Origin:          origin,
		ExpectedOrigin:  origin,
		Logger:          logger,
		OnTimeUpdate:    func(t float64) { ws.MirrorTime(t) },
		OnPlaybackEnded: func(s player.Session) { ws.SceneComplete(s) },
		OnReady:         func() { fmt.Fprintln(out, "Player surface ready") },
	})

	ws = workspace.New(ctx.client(), primary, workspace.Options{
		FrameRate: cfg.FrameRate(),
		Logger:    logger,
		Hooks: workspace.Hooks{
			HighlightScene: func(sc *catalog.Scene) {
				fmt.Fprintf(out, "▶ scene %d  %s-%s  %s\n", sc.SceneNumber, sc.StartTimecode, sc.EndTimecode, sc.Description)
			},
			SubtitleChanged: func(seg *catalog.Transcript) {
				if seg != nil {
					fmt.Fprintf(out, "  > %s\n", seg.Text)
				}
			},
			Notify: func(msg string) { fmt.Fprintln(os.Stderr, msg) },
		},
	})

	runErr := make(chan error, 1)
	go func() { runErr <- primary.Run(signalCtx) }()

	if err := ws.LoadVideo(signalCtx, videoID); err != nil {
		return err
	}

	ws.SetFilter(workspace.Filter{Query: opts.query, Tag: opts.tag})
	if opts.all {
		ws.SelectAllVisible()
	}
	if len(opts.sceneIDs) > 0 {
		if err := ws.Select(opts.sceneIDs...); err != nil {
			return err
		}
	}

	snap := ws.Snapshot()
	fmt.Fprintln(out, renderQueue(ws.Selected()))
	fmt.Fprintf(out, "%d scenes, %s total\n", snap.Stats.Count, snap.Stats.TotalTimecode)

	q, err := ws.PlaySelected()
	if err != nil {
		return err
	}
	if !primary.Ready() {
		fmt.Fprintln(out, "Waiting for a player surface (run `heimdex-player preview`)...")
	}

	select {
	case <-q.Done():
		fmt.Fprintln(out, "Queue finished")
		return nil
	case <-signalCtx.Done():
		ws.Stop()
		return nil
	case err := <-runErr:
		if errors.Is(err, surface.ErrClosed) {
			return errors.New("server closed the surface connection")
		}
		return err
	}
}

func renderQueue(scenes []*catalog.Scene) string {
	rows := make([][]string, 0, len(scenes))
	for i, sc := range scenes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", sc.SceneNumber),
			sc.StartTimecode,
			sc.EndTimecode,
			sc.Description,
		})
	}
	return renderTable(
		[]string{"#", "Scene", "Start", "End", "Description"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

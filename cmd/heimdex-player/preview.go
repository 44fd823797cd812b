package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/logging"
	"github.com/heimdex/heimdex-player/internal/player"
	"github.com/heimdex/heimdex-player/internal/surface"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Attach a headless player surface to the running server",
		Long: "preview joins the surface relay as the player surface. It plays into a\n" +
			"virtual media clock and prints scene and subtitle changes as they happen.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context(), ctx)
		},
	}
}

func runPreview(cmdCtx context.Context, ctx *commandContext) error {
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

	logger := logging.WithSurface(ctx.logger(), string(surface.RolePreview))
	base := ctx.apiURL()

	link, err := surface.Dial(signalCtx, base, surface.RolePreview, origin)
	if err != nil {
		return wrapConnectError(err, base)
	}
	defer link.Close()

	out := os.Stdout
	preview := surface.NewPreview(link, player.NewVirtualMedia(time.Now), ctx.client(), surface.PreviewOptions{
		Origin:         origin,
		ExpectedOrigin: origin,
		Logger:         logger,
		PollInterval:   cfg.PollInterval(),
		FrameRate:      cfg.FrameRate(),
		OnSceneChanged: func(sc *catalog.Scene) {
			if sc == nil {
				return
			}
			fmt.Fprintf(out, "[scene %d] %s  %s-%s\n", sc.SceneNumber, sc.Description, sc.StartTimecode, sc.EndTimecode)
		},
		OnSegmentChanged: func(seg *catalog.Transcript) {
			if seg == nil {
				return
			}
			fmt.Fprintf(out, "  > %s\n", seg.Text)
		},
	})

	fmt.Fprintf(out, "Player surface connected to %s (Ctrl+C to detach)\n", base)
	err = preview.Run(signalCtx)
	if errors.Is(err, context.Canceled) || errors.Is(err, surface.ErrClosed) {
		return nil
	}
	return err
}

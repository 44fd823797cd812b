package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/api"
	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/db"
	"github.com/heimdex/heimdex-player/internal/logging"
	"github.com/heimdex/heimdex-player/internal/playback"
	"github.com/heimdex/heimdex-player/internal/probe"
	"github.com/heimdex/heimdex-player/internal/surface"
	"github.com/heimdex/heimdex-player/internal/ui"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the data API, media streaming and surface relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the system tray")
	return cmd
}

func runServe(cmdCtx context.Context, ctx *commandContext, headless bool) error {
	startTime := time.Now()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another heimdex-player server is using %s", cfg.DataDir())
	}
	defer lock.Unlock()

	logger := logging.NewLoggerFor(cfg.LogLevel(), cfg.LogFormat(), os.Stdout)
	logger.Info("starting heimdex player",
		"version", Version,
		"data_dir", cfg.DataDir(),
		"config_file", cfg.ConfigFile(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())
	catalogSvc := catalog.NewService(repo, cfg.VideoBaseDir(), logging.WithComponent(logger, "catalog"))
	hub := surface.NewHub(logging.WithComponent(logger, "surface"))

	probeCfg := probe.DefaultConfig(logging.WithComponent(logger, "probe"))
	probeCfg.FFprobePath = cfg.FFprobePath()
	if prober, err := probe.NewProber(probeCfg); err != nil {
		logger.Warn("ffprobe unavailable, imported videos keep their declared duration", "error", err)
	} else {
		catalogSvc.SetProber(probe.NewCachedProber(prober, probeCfg.Logger))
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Catalog:        catalogSvc,
		Streamer:       playback.NewServer(logging.WithComponent(logger, "playback")),
		Hub:            hub,
		Logger:         logger,
		StartTime:      startTime,
		FrameRate:      cfg.FrameRate(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Version:        Version,
	})

	if err := apiServer.Listen(); err != nil {
		return err
	}

	playerURL := "http://" + apiServer.Addr()
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-57s║\n", "HEIMDEX PLAYER v"+Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:     %-44s║\n", playerURL)
	fmt.Printf("║  Base folder: %-44s║\n", logging.SanitizePath(catalogSvc.BaseFolder(cmdCtx)))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	runCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	serveErr := make(chan error, 1)
	go func() {
		err := apiServer.Run(runCtx)
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
		serveErr <- err
		quit()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
		case <-cmdCtx.Done():
		case <-quitCh:
			return
		}
		quit()
	}()

	if headless || cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Surfaces:       hub,
			CatalogService: catalogSvc,
			PlayerURL:      playerURL,
			Logger:         logging.WithComponent(logger, "tray"),
			OnQuit:         quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	stopServer()
	runErr := <-serveErr

	logger.Info("shutdown complete")
	return runErr
}

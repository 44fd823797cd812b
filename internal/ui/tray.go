package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/surface"
)

const defaultRefresh = 2 * time.Second

// SurfaceCounter reports connected surfaces per role.
type SurfaceCounter interface {
	Count(role surface.Role) int
}

type Tray struct {
	surfaces  SurfaceCounter
	catalog   catalog.CatalogService
	playerURL string
	refresh   time.Duration
	logger    *slog.Logger

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem

	mu   sync.Mutex
	last Status
	stop chan struct{}

	copyURL func(string) error
	onQuit  func()
}

type TrayConfig struct {
	Surfaces        SurfaceCounter
	CatalogService  catalog.CatalogService
	PlayerURL       string
	RefreshInterval time.Duration
	Logger          *slog.Logger
	OnQuit          func()
}

// Status is what the tray menu shows.
type Status struct {
	Primaries int
	Previews  int
	Videos    int
}

func (s Status) SurfacesTitle() string {
	switch {
	case s.Primaries == 0 && s.Previews == 0:
		return "Surfaces: none connected"
	case s.Previews == 0:
		return fmt.Sprintf("Surfaces: %d primary, waiting for preview", s.Primaries)
	default:
		return fmt.Sprintf("Surfaces: %d primary, %d preview", s.Primaries, s.Previews)
	}
}

func (s Status) VideosTitle() string {
	if s.Videos == 1 {
		return "Videos: 1"
	}
	return fmt.Sprintf("Videos: %d", s.Videos)
}

func NewTray(cfg TrayConfig) *Tray {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return &Tray{
		surfaces:  cfg.Surfaces,
		catalog:   cfg.CatalogService,
		playerURL: cfg.PlayerURL,
		refresh:   refresh,
		logger:    logger,
		stop:      make(chan struct{}),
		copyURL:   clipboard.WriteAll,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Player")

	t.statusItem = systray.AddMenuItem("Surfaces: none connected", "Connected player surfaces")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Imported videos")
	t.videosItem.Disable()

	systray.AddSeparator()

	copyItem := systray.AddMenuItem("Copy Player URL", t.playerURL)
	if t.playerURL == "" {
		copyItem.Disable()
	}

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Player")

	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-copyItem.ClickedCh:
				t.handleCopyURL()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.mu.Lock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	t.mu.Unlock()
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()

	t.apply(t.Snapshot(context.Background()))
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.apply(t.Snapshot(context.Background()))
		}
	}
}

// Snapshot reads the current surface and catalog counts. A catalog error
// keeps the previous video count.
func (t *Tray) Snapshot(ctx context.Context) Status {
	t.mu.Lock()
	st := t.last
	t.mu.Unlock()

	if t.surfaces != nil {
		st.Primaries = t.surfaces.Count(surface.RolePrimary)
		st.Previews = t.surfaces.Count(surface.RolePreview)
	}
	if t.catalog != nil {
		videos, err := t.catalog.GetVideos(ctx)
		if err != nil {
			t.logger.Debug("tray refresh: list videos", "error", err)
		} else {
			st.Videos = len(videos)
		}
	}

	t.mu.Lock()
	t.last = st
	t.mu.Unlock()
	return st
}

func (t *Tray) apply(st Status) {
	if t.statusItem != nil {
		t.statusItem.SetTitle(st.SurfacesTitle())
	}
	if t.videosItem != nil {
		t.videosItem.SetTitle(st.VideosTitle())
	}
}

func (t *Tray) handleCopyURL() {
	if t.playerURL == "" {
		return
	}
	if err := t.copyURL(t.playerURL); err != nil {
		t.logger.Error("failed to copy player url", "error", err)
		return
	}
	t.logger.Info("player url copied", "url", t.playerURL)
}

func (t *Tray) Quit() {
	systray.Quit()
}

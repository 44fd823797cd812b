package ui

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/surface"
)

type fakeCounter map[surface.Role]int

func (f fakeCounter) Count(role surface.Role) int { return f[role] }

type fakeCatalog struct {
	catalog.CatalogService
	videos []*catalog.Video
	err    error
}

func (f *fakeCatalog) GetVideos(context.Context) ([]*catalog.Video, error) {
	return f.videos, f.err
}

func TestStatusTitles(t *testing.T) {
	tests := []struct {
		st       Status
		surfaces string
		videos   string
	}{
		{Status{}, "Surfaces: none connected", "Videos: 0"},
		{Status{Primaries: 1, Videos: 1}, "Surfaces: 1 primary, waiting for preview", "Videos: 1"},
		{Status{Primaries: 2, Previews: 1, Videos: 12}, "Surfaces: 2 primary, 1 preview", "Videos: 12"},
	}
	for _, tt := range tests {
		if got := tt.st.SurfacesTitle(); got != tt.surfaces {
			t.Errorf("SurfacesTitle(%+v) = %q, want %q", tt.st, got, tt.surfaces)
		}
		if got := tt.st.VideosTitle(); got != tt.videos {
			t.Errorf("VideosTitle(%+v) = %q, want %q", tt.st, got, tt.videos)
		}
	}
}

func TestTray_Snapshot(t *testing.T) {
	cat := &fakeCatalog{videos: []*catalog.Video{{ID: "a"}, {ID: "b"}}}
	tray := NewTray(TrayConfig{
		Surfaces:       fakeCounter{surface.RolePrimary: 1, surface.RolePreview: 1},
		CatalogService: cat,
	})

	st := tray.Snapshot(context.Background())
	if st != (Status{Primaries: 1, Previews: 1, Videos: 2}) {
		t.Fatalf("Snapshot() = %+v", st)
	}

	cat.err = errors.New("db closed")
	cat.videos = nil
	if st := tray.Snapshot(context.Background()); st.Videos != 2 {
		t.Errorf("Snapshot().Videos = %d after error, want previous 2", st.Videos)
	}
}

func TestTray_CopyURL(t *testing.T) {
	var copied []string
	tray := NewTray(TrayConfig{PlayerURL: "http://127.0.0.1:8787"})
	tray.copyURL = func(s string) error {
		copied = append(copied, s)
		return nil
	}

	tray.handleCopyURL()
	if len(copied) != 1 || copied[0] != "http://127.0.0.1:8787" {
		t.Errorf("copied = %v", copied)
	}

	tray.playerURL = ""
	tray.handleCopyURL()
	if len(copied) != 1 {
		t.Errorf("copied with empty url: %v", copied)
	}
}

func TestIcon_IsPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(iconBytes))
	if err != nil {
		t.Fatalf("decode icon: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("icon bounds = %v, want 32x32", b)
	}
}

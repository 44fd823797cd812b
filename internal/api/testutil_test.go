package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/db"
	"github.com/heimdex/heimdex-player/internal/logging"
	"github.com/heimdex/heimdex-player/internal/playback"
)

const testOrigin = "http://127.0.0.1:8787"

type testEnv struct {
	cfg     ServerConfig
	svc     *catalog.Service
	baseDir string
	video   *catalog.Video
	scenes  []*catalog.Scene
}

// newTestEnv builds a router config over a real SQLite catalog with one
// imported video whose media file exists in the base folder.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	baseDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(baseDir, "day1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "day1", "GH012936.MP4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "thumb.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := catalog.NewService(catalog.NewRepository(database.Conn()), baseDir, nil)
	ctx := context.Background()
	video, err := svc.ImportVideo(ctx, catalog.ImportRequest{
		Filename:        "GH012936.MP4",
		Filepath:        "day1/GH012936.MP4",
		DurationSeconds: 60,
		TimecodeOffset:  "01:00:00:00",
		Scenes: []catalog.SceneInput{
			{SceneNumber: 1, StartTimecode: "00:00:10:00", EndTimecode: "00:00:15:00", Description: "intro", ThumbnailRef: "thumb.jpg"},
			{SceneNumber: 2, StartTimecode: "00:00:20:00", EndTimecode: "00:00:22:00", Description: "pan"},
		},
		Transcripts: []catalog.TranscriptInput{
			{SceneNumber: 1, StartTimecode: "00:00:11:00", EndTimecode: "00:00:12:00", Text: "hello there"},
		},
	})
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}
	scenes, _ := svc.GetScenes(ctx, video.ID)

	return &testEnv{
		cfg: ServerConfig{
			Catalog:        svc,
			Streamer:       playback.NewServer(nil),
			Logger:         logging.Discard(),
			StartTime:      time.Now(),
			FrameRate:      30,
			AllowedOrigins: []string{testOrigin},
			Version:        "test",
		},
		svc:     svc,
		baseDir: baseDir,
		video:   video,
		scenes:  scenes,
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode JSON body: %v; body=%s", err, rr.Body.String())
	}
	return body
}

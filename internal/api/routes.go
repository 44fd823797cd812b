package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/playback"
	"github.com/heimdex/heimdex-player/internal/surface"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins, cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", listVideosHandler(cfg))
		r.Post("/videos", importVideoHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))
		r.Get("/videos/{id}/scenes", listScenesHandler(cfg))
		r.Get("/videos/{id}/transcriptions", listTranscriptionsHandler(cfg))
		r.Get("/videos/{id}/stream", streamHandler(cfg))
		r.Head("/videos/{id}/stream", streamHandler(cfg))

		r.Get("/scenes/{id}/thumbnail", thumbnailHandler(cfg))
		r.Put("/scenes/{id}", updateSceneHandler(cfg))
		r.Post("/scenes/delete", deleteScenesHandler(cfg))

		r.Get("/settings/base-folder", getBaseFolderHandler(cfg))
		r.Put("/settings/base-folder", setBaseFolderHandler(cfg))

		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Post("/export/srt", exportSRTHandler(cfg))
	})

	if cfg.Hub != nil {
		r.Get(surface.SurfacePath, cfg.Hub.ServeHTTP)
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Hub != nil {
			resp.Surfaces = map[string]int{
				string(surface.RolePrimary): cfg.Hub.Count(surface.RolePrimary),
				string(surface.RolePreview): cfg.Hub.Count(surface.RolePreview),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Catalog.GetVideos(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, VideosResponse{Videos: emptyIfNil(videos)})
	}
}

func importVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		video, err := cfg.Catalog.ImportVideo(r.Context(), req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, video)
	}
}

// loadVideo writes a 404 or 500 and returns nil when the video is unavailable.
func loadVideo(cfg ServerConfig, w http.ResponseWriter, r *http.Request) *catalog.Video {
	id := chi.URLParam(r, "id")
	video, err := cfg.Catalog.GetVideo(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil
	}
	if video == nil {
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
		return nil
	}
	return video
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if video := loadVideo(cfg, w, r); video != nil {
			WriteJSON(w, http.StatusOK, video)
		}
	}
}

func listScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video := loadVideo(cfg, w, r)
		if video == nil {
			return
		}
		scenes, err := cfg.Catalog.GetScenes(r.Context(), video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list scenes", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ScenesResponse{Scenes: emptyIfNil(scenes)})
	}
}

func listTranscriptionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video := loadVideo(cfg, w, r)
		if video == nil {
			return
		}
		transcripts, err := cfg.Catalog.GetTranscripts(r.Context(), video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list transcriptions", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, TranscriptionsResponse{Transcriptions: emptyIfNil(transcripts)})
	}
}

func streamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video := loadVideo(cfg, w, r)
		if video == nil {
			return
		}
		serveMedia(cfg, w, r, video.Filepath, "video_id", video.ID)
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		scene, err := cfg.Catalog.GetScene(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if scene == nil {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}
		if scene.ThumbnailRef == "" {
			WriteError(w, http.StatusNotFound, "scene has no thumbnail", "NOT_FOUND")
			return
		}
		serveMedia(cfg, w, r, scene.ThumbnailRef, "scene_id", scene.ID)
	}
}

func serveMedia(cfg ServerConfig, w http.ResponseWriter, r *http.Request, relative, key, id string) {
	path, err := cfg.Catalog.ResolvePath(r.Context(), relative)
	if err != nil {
		WriteError(w, http.StatusNotFound, "media not available: "+err.Error(), "MEDIA_UNAVAILABLE")
		return
	}

	err = cfg.Streamer.ServeFile(w, r, path)
	switch {
	case errors.Is(err, playback.ErrNotFound):
		WriteError(w, http.StatusNotFound, "media file not found", "NOT_FOUND")
	case err != nil:
		cfg.Logger.Error("playback error", "error", err, key, id)
	}
}

func updateSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update catalog.SceneUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if update.Empty() {
			WriteError(w, http.StatusBadRequest, "no fields to update", "BAD_REQUEST")
			return
		}

		scene, err := cfg.Catalog.UpdateScene(r.Context(), chi.URLParam(r, "id"), update)
		if errors.Is(err, catalog.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, scene)
	}
}

func deleteScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteScenesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.SceneIDs) == 0 {
			WriteError(w, http.StatusBadRequest, "scene_ids must not be empty", "BAD_REQUEST")
			return
		}

		deleted, err := cfg.Catalog.DeleteScenes(r.Context(), req.SceneIDs)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete scenes", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, DeleteScenesResponse{DeletedCount: deleted})
	}
}

func getBaseFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, BaseFolderResponse{Path: cfg.Catalog.BaseFolder(r.Context())})
	}
}

func setBaseFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BaseFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		info, err := os.Stat(req.Path)
		if err != nil || !info.IsDir() {
			WriteError(w, http.StatusBadRequest, "path is not an existing directory", "BAD_REQUEST")
			return
		}

		if err := cfg.Catalog.SetBaseFolder(r.Context(), req.Path); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, BaseFolderResponse{Path: cfg.Catalog.BaseFolder(r.Context())})
	}
}

package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/heimdex/heimdex-player/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.SceneIDs) == 0 {
			WriteError(w, http.StatusBadRequest, "scene_ids must not be empty", "BAD_REQUEST")
			return
		}

		res, err := export.RenderEDL(r.Context(), cfg.Catalog, req, cfg.FrameRate)
		writeExport(cfg, w, res, err, "text/plain; charset=utf-8")
	}
}

func exportSRTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.SRTRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.SceneIDs) == 0 && len(req.TranscriptIDs) == 0 && req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "scene_ids, transcript_ids or video_id is required", "BAD_REQUEST")
			return
		}

		res, err := export.RenderSRT(r.Context(), cfg.Catalog, req, cfg.FrameRate)
		writeExport(cfg, w, res, err, "application/x-subrip; charset=utf-8")
	}
}

func writeExport(cfg ServerConfig, w http.ResponseWriter, res export.Result, err error, contentType string) {
	if errors.Is(err, export.ErrNothingToExport) {
		WriteError(w, http.StatusUnprocessableEntity, "no scenes could be resolved", "UNRESOLVABLE_SCENES")
		return
	}
	if err != nil {
		cfg.Logger.Error("export failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "export failed", "INTERNAL_ERROR")
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	if len(res.Unresolved) > 0 {
		h.Set("X-Unresolved-Scenes", strings.Join(res.Unresolved, ","))
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.Content))
}

package api

import (
	"github.com/heimdex/heimdex-player/internal/catalog"
)

type HealthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	UptimeS  int64          `json:"uptime_s"`
	Surfaces map[string]int `json:"surfaces,omitempty"`
}

type VideosResponse struct {
	Videos []*catalog.Video `json:"videos"`
}

type ScenesResponse struct {
	Scenes []*catalog.Scene `json:"scenes"`
}

type TranscriptionsResponse struct {
	Transcriptions []*catalog.Transcript `json:"transcriptions"`
}

type DeleteScenesRequest struct {
	SceneIDs []string `json:"scene_ids"`
}

type DeleteScenesResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

type BaseFolderRequest struct {
	Path string `json:"path"`
}

type BaseFolderResponse struct {
	Path string `json:"path"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// emptyIfNil keeps list responses as [] rather than null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

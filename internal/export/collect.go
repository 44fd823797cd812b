package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/heimdex/heimdex-player/internal/catalog"
)

// ErrNothingToExport means none of the requested items could be resolved.
var ErrNothingToExport = errors.New("nothing to export")

// Lookup is the slice of the catalog that exports read from.
type Lookup interface {
	GetVideo(ctx context.Context, id string) (*catalog.Video, error)
	GetScene(ctx context.Context, id string) (*catalog.Scene, error)
	GetTranscripts(ctx context.Context, videoID string) ([]*catalog.Transcript, error)
}

// Clips resolves scene IDs in request order. IDs whose scene or video no
// longer exists are returned as unresolved rather than failing the export.
func Clips(ctx context.Context, lookup Lookup, sceneIDs []string) ([]Clip, []string, error) {
	videos := make(map[string]*catalog.Video)
	clips := make([]Clip, 0, len(sceneIDs))
	var unresolved []string

	for _, id := range sceneIDs {
		scene, err := lookup.GetScene(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("get scene %s: %w", id, err)
		}
		if scene == nil {
			unresolved = append(unresolved, id)
			continue
		}

		video, ok := videos[scene.VideoID]
		if !ok {
			video, err = lookup.GetVideo(ctx, scene.VideoID)
			if err != nil {
				return nil, nil, fmt.Errorf("get video %s: %w", scene.VideoID, err)
			}
			videos[scene.VideoID] = video
		}
		if video == nil {
			unresolved = append(unresolved, id)
			continue
		}

		clips = append(clips, Clip{
			SceneID:         scene.ID,
			VideoID:         video.ID,
			Filename:        video.Filename,
			StartTimecode:   scene.StartTimecode,
			EndTimecode:     scene.EndTimecode,
			TimecodeOffset:  video.TimecodeOffset,
			DurationSeconds: video.DurationSeconds,
		})
	}
	return clips, unresolved, nil
}

// Cues gathers transcripts from the videos of the exported clips plus any
// extra video IDs. Explicit transcript IDs win; otherwise transcripts linked
// to an exported scene are taken, or every transcript of an extra video.
func Cues(ctx context.Context, lookup Lookup, clips []Clip, transcriptIDs []string, extraVideos ...string) ([]Cue, error) {
	wantIDs := make(map[string]bool, len(transcriptIDs))
	for _, id := range transcriptIDs {
		wantIDs[id] = true
	}
	scenes := make(map[string]bool, len(clips))
	var order []string
	seen := make(map[string]bool)
	for _, c := range clips {
		scenes[c.SceneID] = true
		if !seen[c.VideoID] {
			seen[c.VideoID] = true
			order = append(order, c.VideoID)
		}
	}
	whole := make(map[string]bool, len(extraVideos))
	for _, id := range extraVideos {
		whole[id] = true
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	var cues []Cue
	for _, videoID := range order {
		transcripts, err := lookup.GetTranscripts(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("get transcripts for %s: %w", videoID, err)
		}
		for _, t := range transcripts {
			switch {
			case len(wantIDs) > 0:
				if !wantIDs[t.ID] {
					continue
				}
			case whole[videoID]:
			case !scenes[t.SceneID]:
				continue
			}
			cues = append(cues, Cue{
				SceneID:       t.SceneID,
				VideoID:       t.VideoID,
				StartTimecode: t.StartTimecode,
				EndTimecode:   t.EndTimecode,
				Text:          t.Text,
			})
		}
	}
	return cues, nil
}

// RenderEDL resolves the requested scenes and renders the EDL. A zero
// request frame rate uses defaultRate.
func RenderEDL(ctx context.Context, lookup Lookup, req EDLRequest, defaultRate float64) (Result, error) {
	if len(req.SceneIDs) == 0 {
		return Result{}, fmt.Errorf("scene_ids must not be empty")
	}
	fps := req.FrameRate
	if fps <= 0 {
		fps = defaultRate
	}

	clips, unresolved, err := Clips(ctx, lookup, req.SceneIDs)
	if err != nil {
		return Result{}, err
	}
	if len(clips) == 0 {
		return Result{Unresolved: unresolved}, ErrNothingToExport
	}

	events := BuildTimeline(clips, fps)
	return Result{
		Filename:   Filename(req.Title, "edl"),
		Content:    GenerateEDL(events, CleanTitle(req.Title), fps),
		Events:     len(events),
		Unresolved: unresolved,
	}, nil
}

// RenderSRT renders the selected transcripts, placed on the record timeline
// of the selected scenes.
func RenderSRT(ctx context.Context, lookup Lookup, req SRTRequest, defaultRate float64) (Result, error) {
	if len(req.SceneIDs) == 0 && len(req.TranscriptIDs) == 0 && req.VideoID == "" {
		return Result{}, fmt.Errorf("scene_ids, transcript_ids or video_id is required")
	}
	fps := req.FrameRate
	if fps <= 0 {
		fps = defaultRate
	}

	clips, unresolved, err := Clips(ctx, lookup, req.SceneIDs)
	if err != nil {
		return Result{}, err
	}

	var extra []string
	if req.VideoID != "" {
		extra = append(extra, req.VideoID)
	}
	cues, err := Cues(ctx, lookup, clips, req.TranscriptIDs, extra...)
	if err != nil {
		return Result{}, err
	}
	if len(cues) == 0 {
		return Result{Unresolved: unresolved}, ErrNothingToExport
	}

	return Result{
		Filename:   Filename(req.Title, "srt"),
		Content:    GenerateSRT(cues, BuildTimeline(clips, fps), fps),
		Events:     len(cues),
		Unresolved: unresolved,
	}, nil
}

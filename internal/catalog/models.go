package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-player/internal/timecode"
)

var ErrNotFound = errors.New("not found")

type Video struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Filepath        string    `json:"filepath"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	TimecodeOffset  string    `json:"timecode_offset,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Scene is a labeled interval of a video. Scenes of one video are loaded
// together and treated as immutable until the next full reload.
type Scene struct {
	ID            string `json:"id"`
	VideoID       string `json:"video_id"`
	SceneNumber   int    `json:"scene_number"`
	StartTimecode string `json:"start_timecode"`
	EndTimecode   string `json:"end_timecode"`
	Description   string `json:"description"`
	EvaluationTag string `json:"evaluation_tag"`
	GoodReason    string `json:"good_reason"`
	BadReason     string `json:"bad_reason"`
	ThumbnailRef  string `json:"thumbnail_ref"`
}

func (s Scene) StartSeconds(frameRate float64) float64 {
	return timecode.ToSeconds(s.StartTimecode, frameRate)
}

func (s Scene) EndSeconds(frameRate float64) float64 {
	return timecode.ToSeconds(s.EndTimecode, frameRate)
}

// Duration is never negative; a scene whose end precedes its start has zero length.
func (s Scene) Duration(frameRate float64) float64 {
	return timecode.Duration(s.StartTimecode, s.EndTimecode, frameRate)
}

type Transcript struct {
	ID            string `json:"id,omitempty"`
	VideoID       string `json:"video_id,omitempty"`
	SceneID       string `json:"scene_id,omitempty"`
	StartTimecode string `json:"start_timecode"`
	EndTimecode   string `json:"end_timecode"`
	Text          string `json:"text"`
}

func (t Transcript) StartSeconds(frameRate float64) float64 {
	return timecode.ToSeconds(t.StartTimecode, frameRate)
}

func (t Transcript) EndSeconds(frameRate float64) float64 {
	return timecode.ToSeconds(t.EndTimecode, frameRate)
}

// SceneUpdate carries the editable scene fields. Nil fields are left untouched.
type SceneUpdate struct {
	Description   *string `json:"description,omitempty"`
	EvaluationTag *string `json:"evaluation_tag,omitempty"`
	GoodReason    *string `json:"good_reason,omitempty"`
	BadReason     *string `json:"bad_reason,omitempty"`
}

func (u SceneUpdate) Empty() bool {
	return u.Description == nil && u.EvaluationTag == nil && u.GoodReason == nil && u.BadReason == nil
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return false
	}
	return VideoExtensions[strings.ToLower(filename[idx:])]
}

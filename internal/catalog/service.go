package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/heimdex-player/internal/timecode"
)

const configKeyBaseFolder = "video_base_folder"

type CatalogService interface {
	GetVideos(ctx context.Context) ([]*Video, error)
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetScenes(ctx context.Context, videoID string) ([]*Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	GetTranscripts(ctx context.Context, videoID string) ([]*Transcript, error)
	UpdateScene(ctx context.Context, id string, update SceneUpdate) (*Scene, error)
	DeleteScenes(ctx context.Context, ids []string) (int64, error)
	ImportVideo(ctx context.Context, req ImportRequest) (*Video, error)
	BaseFolder(ctx context.Context) string
	SetBaseFolder(ctx context.Context, dir string) error
	ResolvePath(ctx context.Context, relative string) (string, error)
}

// ImportRequest describes a video and its analysis output. Transcripts refer
// to scenes by scene number because scene IDs are assigned on import.
type ImportRequest struct {
	Filename        string            `json:"filename" yaml:"filename"`
	Filepath        string            `json:"filepath" yaml:"filepath"`
	DurationSeconds float64           `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	TimecodeOffset  string            `json:"timecode_offset,omitempty" yaml:"timecode_offset,omitempty"`
	Scenes          []SceneInput      `json:"scenes" yaml:"scenes"`
	Transcripts     []TranscriptInput `json:"transcripts" yaml:"transcripts"`
}

type SceneInput struct {
	SceneNumber   int    `json:"scene_number" yaml:"scene_number"`
	StartTimecode string `json:"start_timecode" yaml:"start_timecode"`
	EndTimecode   string `json:"end_timecode" yaml:"end_timecode"`
	Description   string `json:"description" yaml:"description"`
	EvaluationTag string `json:"evaluation_tag" yaml:"evaluation_tag"`
	GoodReason    string `json:"good_reason" yaml:"good_reason"`
	BadReason     string `json:"bad_reason" yaml:"bad_reason"`
	ThumbnailRef  string `json:"thumbnail_ref" yaml:"thumbnail_ref"`
}

type TranscriptInput struct {
	SceneNumber   int    `json:"scene_number,omitempty" yaml:"scene_number,omitempty"`
	StartTimecode string `json:"start_timecode" yaml:"start_timecode"`
	EndTimecode   string `json:"end_timecode" yaml:"end_timecode"`
	Text          string `json:"text" yaml:"text"`
}

// DurationProber reads the length of a media file.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

type Service struct {
	repo          Repository
	defaultFolder string
	logger        *slog.Logger
	prober        DurationProber
}

func NewService(repo Repository, defaultFolder string, logger *slog.Logger) *Service {
	return &Service{repo: repo, defaultFolder: defaultFolder, logger: logger}
}

// SetProber enables filling in missing durations on import.
func (s *Service) SetProber(p DurationProber) {
	s.prober = p
}

func (s *Service) GetVideos(ctx context.Context) ([]*Video, error) {
	return s.repo.ListVideos(ctx)
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	return s.repo.GetVideo(ctx, id)
}

func (s *Service) GetScenes(ctx context.Context, videoID string) ([]*Scene, error) {
	return s.repo.ListScenes(ctx, videoID)
}

func (s *Service) GetScene(ctx context.Context, id string) (*Scene, error) {
	return s.repo.GetScene(ctx, id)
}

func (s *Service) GetTranscripts(ctx context.Context, videoID string) ([]*Transcript, error) {
	return s.repo.ListTranscripts(ctx, videoID)
}

func (s *Service) UpdateScene(ctx context.Context, id string, update SceneUpdate) (*Scene, error) {
	if update.Empty() {
		return nil, fmt.Errorf("no fields to update")
	}
	if err := s.repo.UpdateScene(ctx, id, update); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("scene updated", "scene_id", id)
	}
	return s.repo.GetScene(ctx, id)
}

func (s *Service) DeleteScenes(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("no scenes selected")
	}
	deleted, err := s.repo.DeleteScenes(ctx, ids)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("scenes deleted", "requested", len(ids), "deleted", deleted)
	}
	return deleted, nil
}

func (s *Service) ImportVideo(ctx context.Context, req ImportRequest) (*Video, error) {
	if req.Filename == "" {
		req.Filename = filepath.Base(req.Filepath)
	}
	if !IsVideoFile(req.Filename) {
		return nil, fmt.Errorf("unsupported video file: %q", req.Filename)
	}
	if req.Filepath == "" {
		req.Filepath = req.Filename
	}
	if req.TimecodeOffset != "" && !timecode.Valid(req.TimecodeOffset) {
		return nil, fmt.Errorf("invalid timecode_offset %q", req.TimecodeOffset)
	}

	if req.DurationSeconds <= 0 {
		req.DurationSeconds = s.probeDuration(ctx, req.Filepath)
	}

	video := &Video{
		ID:              NewID(),
		Filename:        req.Filename,
		Filepath:        filepath.ToSlash(req.Filepath),
		DurationSeconds: req.DurationSeconds,
		TimecodeOffset:  req.TimecodeOffset,
		CreatedAt:       time.Now(),
	}

	scenes := make([]*Scene, 0, len(req.Scenes))
	byNumber := make(map[int]string, len(req.Scenes))
	for i, in := range req.Scenes {
		if !timecode.Valid(in.StartTimecode) || !timecode.Valid(in.EndTimecode) {
			return nil, fmt.Errorf("scene %d: invalid timecode", in.SceneNumber)
		}
		number := in.SceneNumber
		if number == 0 {
			number = i + 1
		}
		if _, dup := byNumber[number]; dup {
			return nil, fmt.Errorf("duplicate scene number %d", number)
		}
		sc := &Scene{
			ID:            NewID(),
			VideoID:       video.ID,
			SceneNumber:   number,
			StartTimecode: in.StartTimecode,
			EndTimecode:   in.EndTimecode,
			Description:   in.Description,
			EvaluationTag: in.EvaluationTag,
			GoodReason:    in.GoodReason,
			BadReason:     in.BadReason,
			ThumbnailRef:  filepath.ToSlash(in.ThumbnailRef),
		}
		byNumber[number] = sc.ID
		scenes = append(scenes, sc)
	}

	transcripts := make([]*Transcript, 0, len(req.Transcripts))
	for _, in := range req.Transcripts {
		if !timecode.Valid(in.StartTimecode) || !timecode.Valid(in.EndTimecode) {
			return nil, fmt.Errorf("transcript %q: invalid timecode", in.StartTimecode)
		}
		transcripts = append(transcripts, &Transcript{
			ID:            NewID(),
			VideoID:       video.ID,
			SceneID:       byNumber[in.SceneNumber],
			StartTimecode: in.StartTimecode,
			EndTimecode:   in.EndTimecode,
			Text:          in.Text,
		})
	}

	if err := s.repo.ImportVideo(ctx, video, scenes, transcripts); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("video imported",
			"video_id", video.ID,
			"filename", video.Filename,
			"scenes", len(scenes),
			"transcripts", len(transcripts),
		)
	}
	return video, nil
}

// probeDuration returns 0 when the file cannot be resolved or probed; the
// import goes ahead without a duration.
func (s *Service) probeDuration(ctx context.Context, relative string) float64 {
	if s.prober == nil {
		return 0
	}
	path, err := s.ResolvePath(ctx, relative)
	if err != nil {
		return 0
	}
	d, err := s.prober.ProbeDuration(ctx, path)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("could not probe video duration", "filepath", relative, "error", err)
		}
		return 0
	}
	return d
}

// BaseFolder returns the stored base folder, falling back to the configured default.
func (s *Service) BaseFolder(ctx context.Context) string {
	stored, err := s.repo.GetConfig(ctx, configKeyBaseFolder)
	if err == nil && stored != "" {
		return stored
	}
	return s.defaultFolder
}

func (s *Service) SetBaseFolder(ctx context.Context, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("base folder is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid base folder: %w", err)
	}
	return s.repo.SetConfig(ctx, configKeyBaseFolder, abs)
}

// ResolvePath joins a stored relative media path onto the base folder and
// refuses results that escape it.
func (s *Service) ResolvePath(ctx context.Context, relative string) (string, error) {
	base := s.BaseFolder(ctx)
	if base == "" {
		return "", fmt.Errorf("video base folder is not configured")
	}

	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("invalid base folder: %w", err)
	}

	joined := filepath.Join(baseAbs, filepath.FromSlash(strings.ReplaceAll(relative, "\\", "/")))
	rel, err := filepath.Rel(baseAbs, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base folder")
	}
	return joined, nil
}

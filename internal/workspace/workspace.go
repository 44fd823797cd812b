// Package workspace holds the browsing-surface session: the loaded video and
// its collections, the selection, the table filter and the active playback
// queue. Every instance is independent.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/locator"
	"github.com/heimdex/heimdex-player/internal/player"
	"github.com/heimdex/heimdex-player/internal/selection"
	"github.com/heimdex/heimdex-player/internal/timecode"
)

var (
	ErrNoVideo        = errors.New("no video loaded")
	ErrEmptySelection = errors.New("no scenes selected")
	ErrUnknownScene   = errors.New("scene is not part of the loaded video")
)

// DataSource fetches the collections of a video.
type DataSource interface {
	Scenes(ctx context.Context, videoID string) ([]*catalog.Scene, error)
	Transcripts(ctx context.Context, videoID string) ([]*catalog.Transcript, error)
}

// Player is whatever hosts the media element: a local Controller or the
// primary end of a surface link.
type Player interface {
	player.Player
	SeekPlay(t float64) player.Session
	Reset()
}

// loader is implemented by players that must be told which video to show.
type loader interface {
	LoadVideo(videoID string)
}

// stopper is implemented by players that can stop without dropping the source.
type stopper interface {
	Stop()
}

// Hooks connect the workspace to the table and info panel. Nil hooks are skipped.
type Hooks struct {
	SelectionChanged func(selection.Snapshot)
	HighlightScene   func(*catalog.Scene)
	SceneDisplayed   func(*catalog.Scene)
	SubtitleChanged  func(*catalog.Transcript)
	Notify           func(message string)
}

// Filter is the table's search state. Query matches the description or the
// scene number; Tag matches the evaluation tag exactly.
type Filter struct {
	Query string
	Tag   string
}

func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Query) == "" && f.Tag == ""
}

// Match reports whether a scene is visible under the filter.
func (f Filter) Match(sc *catalog.Scene) bool {
	if f.Tag != "" && !strings.EqualFold(sc.EvaluationTag, f.Tag) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(sc.Description), q) || strconv.Itoa(sc.SceneNumber) == q
}

type Options struct {
	FrameRate float64
	Logger    *slog.Logger
	Hooks     Hooks
}

type Workspace struct {
	mu sync.Mutex

	source DataSource
	player Player
	fps    float64
	logger *slog.Logger
	hooks  Hooks

	videoID     string
	scenes      []*catalog.Scene
	transcripts []*catalog.Transcript
	selected    *selection.Set
	filter      Filter
	queue       *player.Queue

	displayed *catalog.Scene
	segment   *catalog.Transcript
}

func New(source DataSource, p Player, opts Options) *Workspace {
	if opts.FrameRate <= 0 {
		opts.FrameRate = timecode.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Workspace{
		source:   source,
		player:   p,
		fps:      opts.FrameRate,
		logger:   opts.Logger,
		hooks:    opts.Hooks,
		selected: selection.New(),
	}
}

// LoadVideo fetches the video's collections. Switching videos clears the
// selection and drops the queue; reloading the same video keeps the members
// that still exist. On failure the collections and selection are emptied and
// the user is notified.
func (w *Workspace) LoadVideo(ctx context.Context, videoID string) error {
	scenes, err := w.source.Scenes(ctx, videoID)
	var transcripts []*catalog.Transcript
	if err == nil {
		transcripts, err = w.source.Transcripts(ctx, videoID)
	}

	w.mu.Lock()
	changed := videoID != w.videoID
	if err != nil {
		w.videoID = ""
		w.scenes = nil
		w.transcripts = nil
		w.selected.Clear()
		w.queue = nil
		w.displayed = nil
		w.segment = nil
		snap := w.snapshotLocked()
		w.mu.Unlock()

		w.logger.Error("failed to load video", "video_id", videoID, "error", err)
		w.notify(fmt.Sprintf("Could not load scenes: %v", err))
		w.publish(snap)
		return fmt.Errorf("load video %s: %w", videoID, err)
	}

	w.videoID = videoID
	w.scenes = scenes
	w.transcripts = transcripts
	if changed {
		w.selected.Clear()
		w.queue = nil
		w.displayed = nil
		w.segment = nil
	} else {
		w.selected.Retain(scenes)
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	if changed {
		w.player.Reset()
		if l, ok := w.player.(loader); ok {
			l.LoadVideo(videoID)
		}
	}
	w.logger.Info("video loaded", "video_id", videoID, "scenes", len(scenes), "transcripts", len(transcripts))
	w.publish(snap)
	return nil
}

func (w *Workspace) VideoID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.videoID
}

func (w *Workspace) Scenes() []*catalog.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*catalog.Scene(nil), w.scenes...)
}

func (w *Workspace) Transcripts() []*catalog.Transcript {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*catalog.Transcript(nil), w.transcripts...)
}

// VisibleScenes are the loaded scenes that pass the filter, in collection order.
func (w *Workspace) VisibleScenes() []*catalog.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*catalog.Scene
	for _, sc := range w.scenes {
		if w.filter.Match(sc) {
			out = append(out, sc)
		}
	}
	return out
}

// Select adds a loaded scene to the selection.
func (w *Workspace) Select(ids ...string) error {
	return w.mutate(func() error {
		for _, id := range ids {
			if w.sceneLocked(id) == nil {
				return fmt.Errorf("%w: %s", ErrUnknownScene, id)
			}
		}
		for _, id := range ids {
			w.selected.Add(id)
		}
		return nil
	})
}

func (w *Workspace) Deselect(ids ...string) {
	w.mutate(func() error {
		for _, id := range ids {
			w.selected.Remove(id)
		}
		return nil
	})
}

// SelectAllVisible applies the select-all checkbox: selects every visible row,
// or deselects them when all were already selected.
func (w *Workspace) SelectAllVisible() {
	w.mutate(func() error {
		visible := selection.Visible(w.filter.Match)
		all := w.selected.SelectAll(w.scenes, visible) == selection.Checked
		for _, sc := range w.scenes {
			if !visible(sc) {
				continue
			}
			if all {
				w.selected.Remove(sc.ID)
			} else {
				w.selected.Add(sc.ID)
			}
		}
		return nil
	})
}

func (w *Workspace) DeselectAll() {
	w.mutate(func() error {
		w.selected.Clear()
		return nil
	})
}

// SetFilter changes which rows are visible. The selection itself is kept.
func (w *Workspace) SetFilter(f Filter) {
	w.mutate(func() error {
		w.filter = f
		return nil
	})
}

func (w *Workspace) Filter() Filter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filter
}

func (w *Workspace) Snapshot() selection.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Selected returns the selected scenes in collection order.
func (w *Workspace) Selected() []*catalog.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected.Selected(w.scenes)
}

// PlaySelected snapshots the selection into a new queue, replacing any
// previous one, and starts it.
func (w *Workspace) PlaySelected() (*player.Queue, error) {
	w.mu.Lock()
	if w.videoID == "" {
		w.mu.Unlock()
		return nil, ErrNoVideo
	}
	scenes := w.selected.Selected(w.scenes)
	if len(scenes) == 0 {
		w.mu.Unlock()
		return nil, ErrEmptySelection
	}
	q := player.NewQueue(scenes, w.fps, w.player,
		player.WithHighlight(w.highlight),
		player.WithQueueLogger(w.logger),
	)
	w.queue = q
	videoID := w.videoID
	w.mu.Unlock()

	w.logger.Info("playing selected scenes", "video_id", videoID, "count", len(scenes))
	q.Advance()
	return q, nil
}

// PlayScene plays one loaded scene. An active queue is left frozen.
func (w *Workspace) PlayScene(id string) (player.Session, error) {
	w.mu.Lock()
	sc := w.sceneLocked(id)
	w.mu.Unlock()
	if sc == nil {
		return player.Session{}, fmt.Errorf("%w: %s", ErrUnknownScene, id)
	}

	s := w.player.PlayRange(sc.StartSeconds(w.fps), sc.EndSeconds(w.fps), sc)
	w.highlight(sc)
	return s, nil
}

// SeekPlay plays from t without a bound. An active queue is left frozen.
func (w *Workspace) SeekPlay(t float64) player.Session {
	return w.player.SeekPlay(t)
}

// Stop ends playback without advancing the queue.
func (w *Workspace) Stop() {
	if p, ok := w.player.(stopper); ok {
		p.Stop()
		return
	}
	w.player.Reset()
	if l, ok := w.player.(loader); ok {
		if id := w.VideoID(); id != "" {
			l.LoadVideo(id)
		}
	}
}

// Queue is the current queue, nil if none was started for this video.
// A queue interrupted by a manual action stays inspectable here.
func (w *Workspace) Queue() *player.Queue {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue
}

// SceneComplete routes a natural completion to the current queue.
func (w *Workspace) SceneComplete(s player.Session) {
	q := w.Queue()
	if q == nil {
		return
	}
	q.Complete(s)
}

// MirrorTime follows a position reported by the player surface: the info
// panel changes only when the scene under the playhead changes, the subtitle
// is recomputed on every update.
func (w *Workspace) MirrorTime(t float64) {
	w.mu.Lock()
	sc := locator.SceneAt(w.scenes, t, w.fps)
	seg := locator.SegmentAt(w.transcripts, t, w.fps)
	sceneChanged := sceneID(sc) != sceneID(w.displayed)
	w.displayed = sc
	w.segment = seg
	w.mu.Unlock()

	if sceneChanged && w.hooks.SceneDisplayed != nil {
		w.hooks.SceneDisplayed(sc)
	}
	if w.hooks.SubtitleChanged != nil {
		w.hooks.SubtitleChanged(seg)
	}
}

// Displayed is the scene under the last mirrored position.
func (w *Workspace) Displayed() *catalog.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.displayed
}

func (w *Workspace) mutate(fn func() error) error {
	w.mu.Lock()
	if err := fn(); err != nil {
		w.mu.Unlock()
		return err
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.publish(snap)
	return nil
}

func (w *Workspace) snapshotLocked() selection.Snapshot {
	return w.selected.Snapshot(w.scenes, w.filter.Match, w.fps)
}

func (w *Workspace) sceneLocked(id string) *catalog.Scene {
	for _, sc := range w.scenes {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

func (w *Workspace) publish(snap selection.Snapshot) {
	if w.hooks.SelectionChanged != nil {
		w.hooks.SelectionChanged(snap)
	}
}

func (w *Workspace) highlight(sc *catalog.Scene) {
	if w.hooks.HighlightScene != nil {
		w.hooks.HighlightScene(sc)
	}
}

func (w *Workspace) notify(msg string) {
	if w.hooks.Notify != nil {
		w.hooks.Notify(msg)
	}
}

func sceneID(sc *catalog.Scene) string {
	if sc == nil {
		return ""
	}
	return sc.ID
}

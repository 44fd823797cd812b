package surface

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/logging"
	"github.com/heimdex/heimdex-player/internal/player"
)

// Source supplies what the player surface needs for a video.
type Source interface {
	Video(ctx context.Context, id string) (*catalog.Video, error)
	Scenes(ctx context.Context, videoID string) ([]*catalog.Scene, error)
	Transcripts(ctx context.Context, videoID string) ([]*catalog.Transcript, error)
	StreamURL(videoID string) string
}

// Element is a media element that can be given a source.
type Element interface {
	player.Media
	Load(src string)
	// SetDuration marks metadata as loaded.
	SetDuration(seconds float64)
}

// DefaultTimeUpdateInterval matches the cadence of a browser timeupdate event.
const DefaultTimeUpdateInterval = 250 * time.Millisecond

// DefaultAnnounceInterval is how often PREVIEW_READY is repeated until the
// first command arrives. A relay drops frames sent before the primary joins.
const DefaultAnnounceInterval = time.Second

type PreviewOptions struct {
	Origin             string
	ExpectedOrigin     string
	Logger             *slog.Logger
	Scheduler          player.Scheduler
	PollInterval       time.Duration
	TimeUpdateInterval time.Duration
	AnnounceInterval   time.Duration
	FrameRate          float64

	OnSceneChanged   func(*catalog.Scene)
	OnSegmentChanged func(*catalog.Transcript)
}

// Preview is the player surface. It owns the controller and media element
// and reports position and natural completions back over the link.
type Preview struct {
	mu sync.Mutex

	link       Link
	origin     string
	dispatcher *Dispatcher
	media      Element
	source     Source
	controller *player.Controller
	logger     *slog.Logger
	interval   time.Duration
	announce   time.Duration

	videoID string
	scenes  []*catalog.Scene

	// ctx belongs to the frame being handled; loads are bound to it.
	ctx context.Context
}

func NewPreview(link Link, media Element, source Source, opts PreviewOptions) *Preview {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.TimeUpdateInterval <= 0 {
		opts.TimeUpdateInterval = DefaultTimeUpdateInterval
	}
	if opts.AnnounceInterval <= 0 {
		opts.AnnounceInterval = DefaultAnnounceInterval
	}

	p := &Preview{
		link:       link,
		origin:     opts.Origin,
		dispatcher: NewDispatcher(opts.ExpectedOrigin, opts.Logger),
		media:      media,
		source:     source,
		logger:     opts.Logger,
		interval:   opts.TimeUpdateInterval,
		announce:   opts.AnnounceInterval,
	}

	p.controller = player.NewController(media, player.Options{
		Scheduler:    opts.Scheduler,
		PollInterval: opts.PollInterval,
		FrameRate:    opts.FrameRate,
		Logger:       opts.Logger,
		Callbacks: player.Callbacks{
			SceneComplete:  func(player.Session) { p.emit(PlaybackEnded{}) },
			TimeUpdate:     func(t float64) { p.emit(TimeUpdate{CurrentTime: t}) },
			SceneChanged:   opts.OnSceneChanged,
			SegmentChanged: opts.OnSegmentChanged,
		},
	})

	p.dispatcher.Handle(TypeLoadVideo, func(m Message) { p.load(m.(LoadVideo).VideoID) })
	p.dispatcher.Handle(TypePlayScene, func(m Message) {
		ps := m.(PlayScene)
		p.controller.PlayRange(ps.Start, ps.End, p.scene(ps.SceneID))
	})
	p.dispatcher.Handle(TypeSeekPlay, func(m Message) { p.controller.SeekPlay(m.(SeekPlay).Time) })
	p.dispatcher.Handle(TypeReset, func(Message) { p.reset() })
	return p
}

func (p *Preview) Controller() *player.Controller {
	return p.controller
}

// VideoID is the currently loaded video, empty when none.
func (p *Preview) VideoID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoID
}

// Run announces readiness, then handles frames and emits position updates
// while the element plays, until ctx is done or the link closes. Readiness
// is repeated until the first command is accepted.
func (p *Preview) Run(ctx context.Context) error {
	p.emit(PreviewReady{})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	announce := time.NewTicker(p.announce)
	defer announce.Stop()
	announceC := announce.C

	frames := p.link.Frames()
	for {
		select {
		case <-ctx.Done():
			p.controller.Reset()
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				p.controller.Reset()
				return ErrClosed
			}
			if p.Handle(ctx, f) && announceC != nil {
				announce.Stop()
				announceC = nil
			}
		case <-announceC:
			p.emit(PreviewReady{})
		case <-ticker.C:
			if !p.media.Paused() {
				p.controller.TimeUpdate()
			}
		}
	}
}

// Handle dispatches a single inbound frame.
func (p *Preview) Handle(ctx context.Context, frame []byte) bool {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	return p.dispatcher.Dispatch(frame)
}

func (p *Preview) load(videoID string) {
	p.mu.Lock()
	if videoID == p.videoID {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.WithVideoID(p.logger, videoID)
	p.controller.Reset()
	p.media.Load(p.source.StreamURL(videoID))

	video, err := p.source.Video(ctx, videoID)
	if err == nil && video == nil {
		err = catalog.ErrNotFound
	}
	var scenes []*catalog.Scene
	var segments []*catalog.Transcript
	if err == nil {
		scenes, err = p.source.Scenes(ctx, videoID)
	}
	if err == nil {
		segments, err = p.source.Transcripts(ctx, videoID)
	}
	if err != nil {
		logger.Error("failed to load video on player surface", "error", err)
		p.mu.Lock()
		p.videoID = ""
		p.scenes = nil
		p.mu.Unlock()
		p.controller.SetCollections(nil, nil)
		return
	}

	p.mu.Lock()
	p.videoID = videoID
	p.scenes = scenes
	p.mu.Unlock()

	p.controller.SetCollections(scenes, segments)
	p.media.SetDuration(video.DurationSeconds)
	p.controller.MediaReady()
	logger.Info("video loaded on player surface", "scenes", len(scenes), "segments", len(segments))
}

func (p *Preview) reset() {
	p.controller.Reset()
	p.media.Pause()
	p.media.Load("")
	p.mu.Lock()
	p.videoID = ""
	p.scenes = nil
	p.mu.Unlock()
}

func (p *Preview) scene(id string) *catalog.Scene {
	if id == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sc := range p.scenes {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

func (p *Preview) emit(m Message) {
	frame, err := Encode(p.origin, m)
	if err != nil {
		p.logger.Error("encode surface message", "type", m.Type(), "error", err)
		return
	}
	if err := p.link.Send(context.Background(), frame); err != nil {
		p.logger.Debug("surface message dropped", "type", m.Type(), "error", err)
	}
}

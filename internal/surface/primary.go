package surface

import (
	"context"
	"log/slog"
	"sync"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/player"
)

type PrimaryOptions struct {
	// Origin is stamped on outgoing envelopes.
	Origin string
	// ExpectedOrigin is the only origin accepted on inbound envelopes.
	ExpectedOrigin string
	Logger         *slog.Logger

	// OnTimeUpdate receives every position reported by the player surface.
	OnTimeUpdate func(seconds float64)
	// OnPlaybackEnded receives the bounded session that completed remotely.
	OnPlaybackEnded func(player.Session)
	// OnReady fires for every PREVIEW_READY, including repeats after a reload.
	OnReady func()
}

// Primary is the browsing-surface end of a link. It implements player.Player
// by sending commands to the player surface, holding them back until the
// player surface has announced itself.
type Primary struct {
	mu sync.Mutex

	link       Link
	origin     string
	dispatcher *Dispatcher
	logger     *slog.Logger
	opts       PrimaryOptions

	ready    bool
	buffer   []Message
	lastLoad *LoadVideo

	counter  uint64
	current  player.Session
	consumed bool
}

func NewPrimary(link Link, opts PrimaryOptions) *Primary {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	p := &Primary{
		link:       link,
		origin:     opts.Origin,
		dispatcher: NewDispatcher(opts.ExpectedOrigin, opts.Logger),
		logger:     opts.Logger,
		opts:       opts,
	}

	p.dispatcher.Handle(TypePreviewReady, func(Message) { p.handleReady() })
	p.dispatcher.Handle(TypeTimeUpdate, func(m Message) {
		if fn := p.opts.OnTimeUpdate; fn != nil {
			fn(m.(TimeUpdate).CurrentTime)
		}
	})
	p.dispatcher.Handle(TypePlaybackEnded, func(Message) { p.handleEnded() })
	return p
}

// Run reads inbound frames until ctx is done or the link closes.
func (p *Primary) Run(ctx context.Context) error {
	frames := p.link.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return ErrClosed
			}
			p.dispatcher.Dispatch(f)
		}
	}
}

// Ready reports whether PREVIEW_READY has been received.
func (p *Primary) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Pending is the number of commands held back until the player surface is ready.
func (p *Primary) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

func (p *Primary) LoadVideo(videoID string) {
	p.mu.Lock()
	m := LoadVideo{VideoID: videoID}
	p.lastLoad = &m
	p.send(m)
	p.mu.Unlock()
}

func (p *Primary) PlayRange(start, end float64, scene *catalog.Scene) player.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	s := player.Session{Number: p.counter, Start: start, Scene: scene}
	if end > start {
		s.End = end
		s.Bounded = true
	}
	p.current = s
	p.consumed = false

	m := PlayScene{Start: start, End: end}
	if scene != nil {
		m.SceneID = scene.ID
	}
	p.send(m)
	return s
}

func (p *Primary) SeekPlay(t float64) player.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	p.current = player.Session{Number: p.counter, Start: t}
	p.consumed = false
	p.send(SeekPlay{Time: t})
	return p.current
}

func (p *Primary) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = player.Session{}
	p.send(Reset{})
}

func (p *Primary) handleReady() {
	p.mu.Lock()
	var flush []Message
	if !p.ready {
		p.ready = true
		flush = p.buffer
		p.buffer = nil
		p.logger.Info("player surface ready", "flushing", len(flush))
	} else if p.lastLoad != nil {
		p.logger.Info("player surface reloaded, resending video", "video_id", p.lastLoad.VideoID)
		flush = []Message{*p.lastLoad}
	}
	for _, m := range flush {
		p.write(m)
	}
	p.mu.Unlock()

	if fn := p.opts.OnReady; fn != nil {
		fn()
	}
}

func (p *Primary) handleEnded() {
	p.mu.Lock()
	s := p.current
	if !s.Bounded || p.consumed {
		p.mu.Unlock()
		p.logger.Debug("ignoring playback end without an open bounded session")
		return
	}
	p.consumed = true
	p.mu.Unlock()

	if fn := p.opts.OnPlaybackEnded; fn != nil {
		fn(s)
	}
}

// send buffers until ready. Caller holds mu.
func (p *Primary) send(m Message) {
	if !p.ready {
		p.buffer = append(p.buffer, m)
		return
	}
	p.write(m)
}

// write encodes and sends immediately. Caller holds mu so frames leave in
// the order they were issued.
func (p *Primary) write(m Message) {
	frame, err := Encode(p.origin, m)
	if err != nil {
		p.logger.Error("encode surface message", "type", m.Type(), "error", err)
		return
	}
	if err := p.link.Send(context.Background(), frame); err != nil {
		p.logger.Debug("surface message dropped", "type", m.Type(), "error", err)
	}
}

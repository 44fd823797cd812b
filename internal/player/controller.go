// Package player drives time-bounded playback sessions on a media element and
// sequences them into queues.
package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/locator"
	"github.com/heimdex/heimdex-player/internal/timecode"
)

type State int

const (
	Idle State = iota
	Seeking
	PlayingUnbounded
	PlayingBounded
	Stopping
)

func (s State) String() string {
	switch s {
	case Seeking:
		return "seeking"
	case PlayingUnbounded:
		return "playing_unbounded"
	case PlayingBounded:
		return "playing_bounded"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Session is one play or seek request. Numbers increase monotonically per
// controller so completions can be attributed to the request that caused them.
type Session struct {
	Number  uint64
	Start   float64
	End     float64
	Bounded bool
	Scene   *catalog.Scene
}

// Callbacks are invoked without the controller lock held, so they may call
// back into the controller. Any of them may be nil.
type Callbacks struct {
	// SceneComplete fires once when a bounded session reaches its end.
	SceneComplete func(Session)
	// SceneChanged fires when the scene under the playhead changes.
	SceneChanged func(*catalog.Scene)
	// SegmentChanged fires on every position update.
	SegmentChanged func(*catalog.Transcript)
	// TimeUpdate fires on every position update with the current position.
	TimeUpdate func(seconds float64)
}

type Options struct {
	Scheduler    Scheduler
	PollInterval time.Duration
	FrameRate    float64
	Logger       *slog.Logger
	Callbacks    Callbacks
}

// Controller owns at most one playback session on a single media element.
// A new request always preempts the current one.
type Controller struct {
	mu sync.Mutex

	media    Media
	sched    Scheduler
	interval time.Duration
	fps      float64
	logger   *slog.Logger
	cb       Callbacks

	state   State
	session Session
	counter uint64
	pending *Session

	stopPoll   func()
	generation uint64

	scenes    []*catalog.Scene
	segments  []*catalog.Transcript
	displayed *catalog.Scene

	events []func()
}

func NewController(media Media, opts Options) *Controller {
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = timecode.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		media:    media,
		sched:    opts.Scheduler,
		interval: opts.PollInterval,
		fps:      opts.FrameRate,
		logger:   opts.Logger,
		cb:       opts.Callbacks,
	}
}

// SetCallbacks replaces the callbacks. Intended for wiring before first use.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

// SetCollections installs the scenes and transcript segments used for the
// displayed-scene and subtitle lookups.
func (c *Controller) SetCollections(scenes []*catalog.Scene, segments []*catalog.Transcript) {
	c.mu.Lock()
	c.scenes = scenes
	c.segments = segments
	c.setDisplayed(nil)
	c.unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current or most recent session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) Displayed() *catalog.Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// PlayRange seeks to start and plays until end. When end <= start the
// session is unbounded.
func (c *Controller) PlayRange(start, end float64, scene *catalog.Scene) Session {
	c.mu.Lock()
	s := c.begin(start, end, end > start, scene)
	c.unlock()
	return s
}

// SeekPlay seeks to t and plays without a boundary.
func (c *Controller) SeekPlay(t float64) Session {
	c.mu.Lock()
	s := c.begin(t, 0, false, nil)
	c.unlock()
	return s
}

// MediaReady performs a seek deferred while metadata was loading.
func (c *Controller) MediaReady() {
	c.mu.Lock()
	if c.pending != nil && c.state == Seeking {
		s := *c.pending
		c.pending = nil
		c.start(s)
	}
	c.unlock()
}

// TimeUpdate reports a position change of the element.
func (c *Controller) TimeUpdate() {
	c.mu.Lock()
	pos := c.media.CurrentTime()
	c.publishPosition(pos)
	if fn := c.cb.TimeUpdate; fn != nil {
		c.events = append(c.events, func() { fn(pos) })
	}
	c.unlock()
}

// ManualPause reports that the operator paused the element directly. A
// playing session ends without completing.
func (c *Controller) ManualPause() {
	c.mu.Lock()
	if c.state == PlayingBounded || c.state == PlayingUnbounded {
		c.logger.Debug("session interrupted by pause", "session", c.session.Number)
		c.cancelPoll()
		c.state = Idle
	}
	c.unlock()
}

// ManualSeek reports that the operator moved the playhead directly.
func (c *Controller) ManualSeek(t float64) {
	c.mu.Lock()
	if c.state == PlayingBounded || c.state == PlayingUnbounded {
		c.logger.Debug("session interrupted by seek", "session", c.session.Number, "position", t)
		c.cancelPoll()
		c.state = Idle
	}
	c.publishPosition(t)
	c.unlock()
}

// Stop pauses the element and ends the session without completing it.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.cancelPoll()
	c.pending = nil
	if c.state != Idle {
		c.logger.Debug("session stopped", "session", c.session.Number)
		c.media.Pause()
	}
	c.state = Idle
	c.unlock()
}

// Reset cancels any session or deferred seek and clears the displayed info.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.cancelPoll()
	c.pending = nil
	c.state = Idle
	c.setDisplayed(nil)
	if fn := c.cb.SegmentChanged; fn != nil {
		c.events = append(c.events, func() { fn(nil) })
	}
	c.unlock()
}

func (c *Controller) begin(start, end float64, bounded bool, scene *catalog.Scene) Session {
	c.cancelPoll()
	c.counter++
	s := Session{Number: c.counter, Start: start, Scene: scene}
	if bounded {
		s.End = end
		s.Bounded = true
	}
	c.session = s
	c.state = Seeking
	c.publishPosition(start)

	if !c.media.Ready() {
		c.pending = &s
		c.logger.Debug("seek deferred until media ready", "session", s.Number, "start", start)
		return s
	}
	c.pending = nil
	c.start(s)
	return s
}

func (c *Controller) start(s Session) {
	c.media.Seek(s.Start)

	if err := c.media.Play(); err != nil {
		c.logger.Warn("play rejected", "session", s.Number, "error", err)
		c.state = Idle
		return
	}

	if !s.Bounded {
		c.state = PlayingUnbounded
		return
	}

	c.state = PlayingBounded
	c.generation++
	gen := c.generation
	c.stopPoll = c.sched.Every(c.interval, func() { c.poll(gen) })
}

func (c *Controller) poll(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != PlayingBounded {
		c.mu.Unlock()
		return
	}

	// Media that ran off its end reports paused; that still counts as
	// reaching a bound at or past the end.
	pos := c.media.CurrentTime()
	if pos >= c.session.End || mediaEnded(c.media) {
		c.cancelPoll()
		c.media.Pause()
		c.state = Stopping
		s := c.session
		c.logger.Debug("scene boundary reached", "session", s.Number, "position", pos, "end", s.End)
		c.state = Idle
		if fn := c.cb.SceneComplete; fn != nil {
			c.events = append(c.events, func() { fn(s) })
		}
	}
	c.unlock()
}

// cancelPoll stops the boundary poll; ticks already in flight see a new
// generation and return.
func (c *Controller) cancelPoll() {
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
	c.generation++
}

func (c *Controller) publishPosition(pos float64) {
	c.setDisplayed(locator.SceneAt(c.scenes, pos, c.fps))
	seg := locator.SegmentAt(c.segments, pos, c.fps)
	if fn := c.cb.SegmentChanged; fn != nil {
		c.events = append(c.events, func() { fn(seg) })
	}
}

func (c *Controller) setDisplayed(sc *catalog.Scene) {
	if sceneID(sc) == sceneID(c.displayed) && (sc == nil) == (c.displayed == nil) {
		return
	}
	c.displayed = sc
	if fn := c.cb.SceneChanged; fn != nil {
		c.events = append(c.events, func() { fn(sc) })
	}
}

// unlock releases the mutex and then runs the callbacks queued while it was held.
func (c *Controller) unlock() {
	events := c.events
	c.events = nil
	c.mu.Unlock()
	for _, fn := range events {
		fn()
	}
}

func sceneID(sc *catalog.Scene) string {
	if sc == nil {
		return ""
	}
	return sc.ID
}

package player

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/timecode"
)

// Player starts bounded sessions. Controller implements it for local
// playback; the primary end of a surface link implements it remotely.
type Player interface {
	PlayRange(start, end float64, scene *catalog.Scene) Session
}

// Queue plays a fixed list of scenes one after another. It only moves on
// when the session it started completes naturally; any other interruption
// leaves it frozen with its cursor intact.
type Queue struct {
	mu sync.Mutex

	items     []*catalog.Scene
	cursor    int
	fps       float64
	player    Player
	logger    *slog.Logger
	highlight func(*catalog.Scene)

	active    Session
	awaiting  bool
	starting  bool
	early     *Session
	exhausted bool
	done      chan struct{}
}

type QueueOption func(*Queue)

// WithHighlight registers a callback invoked for every scene the queue starts.
func WithHighlight(fn func(*catalog.Scene)) QueueOption {
	return func(q *Queue) { q.highlight = fn }
}

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = logger }
}

// NewQueue snapshots scenes sorted by start time. Ties keep input order.
func NewQueue(scenes []*catalog.Scene, frameRate float64, player Player, opts ...QueueOption) *Queue {
	if frameRate <= 0 {
		frameRate = timecode.Default
	}

	items := make([]*catalog.Scene, len(scenes))
	copy(items, scenes)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartSeconds(frameRate) < items[j].StartSeconds(frameRate)
	})

	q := &Queue{
		items:  items,
		fps:    frameRate,
		player: player,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Advance starts the scene under the cursor. It returns false once the queue
// is exhausted; further calls are no-ops. Zero-length scenes are skipped
// because they would never reach a boundary.
func (q *Queue) Advance() bool {
	q.mu.Lock()
	if q.exhausted {
		q.mu.Unlock()
		return false
	}

	for q.cursor < len(q.items) && q.items[q.cursor].Duration(q.fps) <= 0 {
		q.logger.Debug("skipping empty scene", "scene_id", q.items[q.cursor].ID)
		q.cursor++
	}

	if q.cursor >= len(q.items) {
		q.logger.Info("playback queue finished", "played", q.cursor)
		q.items = nil
		q.cursor = 0
		q.awaiting = false
		q.exhausted = true
		close(q.done)
		q.mu.Unlock()
		return false
	}

	sc := q.items[q.cursor]
	q.cursor++
	q.awaiting = false
	q.starting = true
	q.early = nil
	q.mu.Unlock()

	s := q.player.PlayRange(sc.StartSeconds(q.fps), sc.EndSeconds(q.fps), sc)

	q.mu.Lock()
	q.active = s
	q.starting = false
	finished := s.Bounded && q.early != nil && q.early.Number == s.Number
	q.early = nil
	q.awaiting = s.Bounded && !finished
	q.mu.Unlock()

	if q.highlight != nil {
		q.highlight(sc)
	}
	if finished {
		q.Advance()
	}
	return true
}

// Complete advances if s is the session this queue is waiting on. Duplicate
// or foreign completions are ignored.
func (q *Queue) Complete(s Session) bool {
	q.mu.Lock()
	if q.starting {
		// The session being started finished before PlayRange returned;
		// Advance picks this up once it knows the session number.
		early := s
		q.early = &early
		q.mu.Unlock()
		return false
	}
	if q.exhausted || !q.awaiting || s.Number != q.active.Number {
		q.mu.Unlock()
		return false
	}
	q.awaiting = false
	q.mu.Unlock()

	return q.Advance()
}

// Cursor is the index of the next scene to start.
func (q *Queue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.cursor
}

func (q *Queue) Items() []*catalog.Scene {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*catalog.Scene, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exhausted
}

// Done is closed when the queue is exhausted.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

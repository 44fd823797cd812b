package player

import (
	"errors"
	"sync"
	"time"
)

type fakeMedia struct {
	mu         sync.Mutex
	position   float64
	paused     bool
	ready      bool
	playErr    error
	seeks      []float64
	plays      int
	pauses     int
	positionRd int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{paused: true, ready: true}
}

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionRd++
	return m.position
}

func (m *fakeMedia) Seek(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, t)
	m.position = t
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	if m.playErr != nil {
		return m.playErr
	}
	m.paused = false
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.paused = true
}

func (m *fakeMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *fakeMedia) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *fakeMedia) set(pos float64) {
	m.mu.Lock()
	m.position = pos
	m.mu.Unlock()
}

func (m *fakeMedia) reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionRd
}

var errAutoplay = errors.New("autoplay blocked")

// manualScheduler records jobs and runs them only when fired.
type manualScheduler struct {
	jobs []*manualJob
}

type manualJob struct {
	interval time.Duration
	fn       func()
	stopped  bool
}

func (s *manualScheduler) Every(d time.Duration, fn func()) func() {
	job := &manualJob{interval: d, fn: fn}
	s.jobs = append(s.jobs, job)
	return func() { job.stopped = true }
}

// fire runs every job once, including stopped ones, to prove stale ticks are ignored.
func (s *manualScheduler) fire() {
	for _, j := range append([]*manualJob(nil), s.jobs...) {
		j.fn()
	}
}

func (s *manualScheduler) active() int {
	n := 0
	for _, j := range s.jobs {
		if !j.stopped {
			n++
		}
	}
	return n
}

package player

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	ErrNoSource     = errors.New("no media source")
	ErrPlayRejected = errors.New("play rejected")
)

// VirtualMedia is a clock-driven media element with no decoding. The headless
// preview surface plays through it and tests drive it with a fake clock.
type VirtualMedia struct {
	mu  sync.Mutex
	now func() time.Time

	source   string
	ready    bool
	duration float64

	position float64
	anchor   time.Time
	paused   bool
	blocked  bool
}

func NewVirtualMedia(now func() time.Time) *VirtualMedia {
	if now == nil {
		now = time.Now
	}
	return &VirtualMedia{now: now, paused: true}
}

// Load sets a new source. The element is not ready until SetDuration.
func (m *VirtualMedia) Load(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = src
	m.ready = false
	m.duration = 0
	m.position = 0
	m.paused = true
}

// SetDuration marks metadata as loaded. A zero duration means unknown length.
func (m *VirtualMedia) SetDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == "" {
		return
	}
	m.duration = math.Max(0, seconds)
	m.ready = true
}

func (m *VirtualMedia) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// BlockPlay makes Play fail, as a browser autoplay policy would.
func (m *VirtualMedia) BlockPlay(blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = blocked
}

func (m *VirtualMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *VirtualMedia) Seek(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = m.clamp(seconds)
	m.anchor = m.now()
}

func (m *VirtualMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == "" {
		return ErrNoSource
	}
	if m.blocked {
		return ErrPlayRejected
	}
	if !m.paused {
		return nil
	}
	m.anchor = m.now()
	m.paused = false
	return nil
}

func (m *VirtualMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return
	}
	m.position = m.currentLocked()
	m.paused = true
}

// Paused also reports true once playback ran off the end of the media.
func (m *VirtualMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused || (m.duration > 0 && m.currentLocked() >= m.duration)
}

// Ended reports whether playback reached the known duration.
func (m *VirtualMedia) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration > 0 && m.currentLocked() >= m.duration
}

func (m *VirtualMedia) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *VirtualMedia) currentLocked() float64 {
	if m.paused {
		return m.position
	}
	return m.clamp(m.position + m.now().Sub(m.anchor).Seconds())
}

func (m *VirtualMedia) clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if m.duration > 0 && t > m.duration {
		return m.duration
	}
	return t
}

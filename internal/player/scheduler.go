package player

import (
	"sync"
	"time"
)

// DefaultPollInterval is how often a bounded session checks its end boundary.
const DefaultPollInterval = 100 * time.Millisecond

// Scheduler runs fn every d until the returned stop func is called.
// Stop must be safe to call more than once and must not wait for fn.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler runs each job on its own goroutine driven by a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

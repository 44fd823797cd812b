package player

// Media is the playback primitive a Controller drives. Implementations report
// and accept a position in seconds; Play may be rejected (autoplay policy,
// missing source) and the rejection is reported as an error.
type Media interface {
	CurrentTime() float64
	Seek(seconds float64)
	Play() error
	Pause()
	Paused() bool
	// Ready reports whether metadata is loaded and seeking is possible.
	Ready() bool
}

// Ender is implemented by media that can tell running off the end apart from
// a pause.
type Ender interface {
	Ended() bool
}

func mediaEnded(m Media) bool {
	e, ok := m.(Ender)
	return ok && e.Ended()
}

package surface

import (
	"errors"
	"log/slog"
	"sync"
)

// Dispatcher routes decoded messages to per-type handlers after checking the
// envelope origin.
type Dispatcher struct {
	mu       sync.RWMutex
	origin   string
	handlers map[Type]func(Message)
	logger   *slog.Logger
}

func NewDispatcher(expectedOrigin string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		origin:   expectedOrigin,
		handlers: make(map[Type]func(Message)),
		logger:   logger,
	}
}

func (d *Dispatcher) Handle(t Type, fn func(Message)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = fn
}

// Dispatch decodes a frame and runs its handler. It reports whether a
// handler ran; rejected frames are logged and otherwise have no effect.
func (d *Dispatcher) Dispatch(frame []byte) bool {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		d.logger.Warn("dropping malformed surface message", "error", err)
		return false
	}
	return d.DispatchEnvelope(env)
}

func (d *Dispatcher) DispatchEnvelope(env Envelope) bool {
	if env.Origin != d.origin {
		d.logger.Warn("dropping surface message from untrusted origin",
			"origin", env.Origin,
			"expected", d.origin,
			"type", env.Type,
		)
		return false
	}

	msg, err := env.Message()
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			d.logger.Debug("ignoring unknown surface message", "type", env.Type)
		} else {
			d.logger.Warn("dropping undecodable surface message", "type", env.Type, "error", err)
		}
		return false
	}

	d.mu.RLock()
	fn := d.handlers[env.Type]
	d.mu.RUnlock()
	if fn == nil {
		d.logger.Debug("no handler for surface message", "type", env.Type)
		return false
	}

	fn(msg)
	return true
}

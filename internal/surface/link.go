package surface

import (
	"context"
	"sync"
)

// Link is one end of a duplex, FIFO-per-sender frame channel between two
// surfaces. Send is safe for concurrent use. Frames is closed when the link
// closes from either side.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	Frames() <-chan []byte
	Close() error
}

const pipeBuffer = 64

// Pipe returns two in-process links wired to each other.
func Pipe() (Link, Link) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	shared := &pipeState{done: make(chan struct{})}

	a := &pipeEnd{state: shared, in: ba, out: ab}
	b := &pipeEnd{state: shared, in: ab, out: ba}
	return a, b
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	state *pipeState
	in    chan []byte
	out   chan []byte

	frames chan []byte
	start  sync.Once
}

func (p *pipeEnd) Send(ctx context.Context, frame []byte) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}

	select {
	case p.out <- frame:
		return nil
	case <-p.state.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frames forwards inbound frames until the pipe closes. Frames still
// buffered at close time are dropped, as for a closed window.
func (p *pipeEnd) Frames() <-chan []byte {
	p.start.Do(func() {
		p.frames = make(chan []byte)
		go func() {
			defer close(p.frames)
			for {
				select {
				case <-p.state.done:
					return
				case f := <-p.in:
					select {
					case p.frames <- f:
					case <-p.state.done:
						return
					}
				}
			}
		}()
	})
	return p.frames
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}

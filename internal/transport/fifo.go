// Package transport implements the plain in-process FIFO transport of spec
// §5: a buffered channel of envelopes with ordered delivery and a blocking
// NextBatch used by the orchestrator's outer loop.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/agencyrun/agency/pkg/envelope"
)

// ErrClosed is returned by Publish/NextBatch once the FIFO has been closed.
var ErrClosed = errors.New("transport: fifo closed")

// FIFO is a single ordered queue of envelopes. Multiple producers may call
// Publish concurrently; only the orchestrator's own goroutine should call
// NextBatch.
type FIFO struct {
	mu     sync.Mutex
	buf    chan envelope.Envelope
	closed bool
	done   chan struct{}
}

// New returns a FIFO with the given buffer capacity. capacity <= 0 means
// unbuffered delivery (every Publish blocks until NextBatch drains it).
func New(capacity int) *FIFO {
	if capacity < 0 {
		capacity = 0
	}
	return &FIFO{buf: make(chan envelope.Envelope, capacity), done: make(chan struct{})}
}

// Publish enqueues env, blocking if the buffer is full until space frees up,
// ctx is cancelled, or the FIFO is closed.
func (f *FIFO) Publish(ctx context.Context, env envelope.Envelope) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.mu.Unlock()

	select {
	case f.buf <- env:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextBatch blocks for at least one envelope, then drains whatever else is
// immediately available without blocking further, so the orchestrator's
// outer loop processes events in small natural batches instead of one at a
// time (spec §5 Transport: "delivers ordered batches").
func (f *FIFO) NextBatch(ctx context.Context) ([]envelope.Envelope, error) {
	// Buffered envelopes are still delivered after Close; ErrClosed only
	// once the queue has fully drained.
	select {
	case env := <-f.buf:
		return f.drainFrom(env), nil
	default:
	}

	select {
	case env := <-f.buf:
		return f.drainFrom(env), nil
	case <-f.done:
		if batch := f.Flush(); len(batch) > 0 {
			return batch, nil
		}
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FIFO) drainFrom(first envelope.Envelope) []envelope.Envelope {
	batch := []envelope.Envelope{first}
	return append(batch, f.Flush()...)
}

// Flush drains any currently buffered envelopes without waiting, returning
// whatever was immediately available.
func (f *FIFO) Flush() []envelope.Envelope {
	var batch []envelope.Envelope
	for {
		select {
		case env := <-f.buf:
			batch = append(batch, env)
		default:
			return batch
		}
	}
}

// Close marks the FIFO closed; pending Publish/NextBatch calls unblock with
// ErrClosed. Close is idempotent.
func (f *FIFO) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

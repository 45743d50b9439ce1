package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/gpukit/cmdsched/internal/command"
)

var ErrClosed = errors.New("transport: ring closed")

// Ring is the bounded cross-thread command channel: the controller
// goroutine pushes serialized envelopes, dispatch workers on the other side
// receive and decode them. Capacity is fixed at construction; Push never
// blocks (a full ring drops, mirroring the executor's backpressure policy).
// Push and Close serialize on a mutex so a concurrent Close can never
// interleave between the closed check and the send.
type Ring struct {
	mu     sync.Mutex
	queue  chan []byte
	seq    uint64
	closed bool
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{queue: make(chan []byte, capacity)}
}

// Push serializes env, stamps it with the next sequence number, and
// enqueues it without blocking. Returns false if the ring is full or
// closed; the caller decides whether to retry or fail the run.
func (r *Ring) Push(env command.Envelope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrClosed
	}
	r.seq++
	env.Seq = r.seq
	b, err := command.Encode(env)
	if err != nil {
		return false, err
	}
	select {
	case r.queue <- b:
		return true, nil
	default:
		return false, nil
	}
}

// Recv blocks until an envelope is available, the ring is drained and
// closed, or ctx is done. A closed, empty ring returns ErrClosed.
func (r *Ring) Recv(ctx context.Context) (command.Envelope, error) {
	select {
	case b, ok := <-r.queue:
		if !ok {
			return command.Envelope{}, ErrClosed
		}
		return command.Decode(b)
	case <-ctx.Done():
		return command.Envelope{}, ctx.Err()
	}
}

// Close stops accepting pushes; queued envelopes remain receivable.
// Safe to call more than once and concurrently with Push.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.queue)
}

// Len returns how many envelopes are currently queued.
func (r *Ring) Len() int { return len(r.queue) }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return cap(r.queue) }

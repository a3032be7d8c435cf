// Package stream manages the lifecycle of one streamed generation at a
// time: starting it, accumulating its chunks in order, and supporting
// cancellation that discards anything arriving late.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/logger"
)

// State is the lifecycle phase of a streamed generation.
type State string

// Controller states. Completed, Errored and Cancelled are terminal for the
// current stream; a new Start resets to Sending.
const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// ErrStreamActive is returned by Start while a previous stream is still in
// flight.
var ErrStreamActive = errors.New("a stream is already active")

// StreamFunc opens a streamed generation and returns its chunk channel.
// gateway.Gateway.GenerateStream satisfies it.
type StreamFunc func(ctx context.Context, req gateway.GenerateRequest) (<-chan gateway.StreamChunk, error)

// Snapshot is a point-in-time view of the controller, safe to retain.
type Snapshot struct {
	State State
	// Text is the accumulated output so far. On error or cancellation it
	// retains whatever arrived before the interruption.
	Text string
	Err  error
}

// Controller runs at most one streamed generation at a time. All methods
// are safe for concurrent use.
type Controller struct {
	stream StreamFunc

	mu     sync.Mutex
	state  State
	buf    strings.Builder
	err    error
	cancel context.CancelFunc
	gen    uint64 // increments per Start; stale goroutines check it

	onUpdate func(Snapshot)
}

// Option configures a Controller.
type Option func(*Controller)

// WithUpdateFunc registers a callback invoked after every state or text
// change, with the new snapshot. The callback runs on the stream's
// goroutine and must not block.
func WithUpdateFunc(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onUpdate = fn
	}
}

// New returns an idle Controller that opens streams with fn.
func New(fn StreamFunc, opts ...Option) *Controller {
	c := &Controller{
		stream: fn,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new streamed generation. It returns ErrStreamActive if one
// is already in flight, and otherwise returns once the stream is open; chunk
// consumption continues in the background until a terminal state. Done
// reports completion.
func (c *Controller) Start(ctx context.Context, req gateway.GenerateRequest) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state == StateSending || c.state == StateStreaming {
		c.mu.Unlock()
		return nil, ErrStreamActive
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.state = StateSending
	c.buf.Reset()
	c.err = nil
	c.mu.Unlock()
	c.notify()

	ch, err := c.stream(streamCtx, req)
	if err != nil {
		cancel()
		c.finish(gen, StateErrored, err)
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		c.consume(gen, ch)
	}()
	return done, nil
}

// consume drains the chunk channel, folding deltas into the buffer in
// arrival order. Chunks belonging to a superseded generation are discarded.
func (c *Controller) consume(gen uint64, ch <-chan gateway.StreamChunk) {
	for chunk := range ch {
		c.mu.Lock()
		if c.gen != gen || (c.state != StateSending && c.state != StateStreaming) {
			// The stream already reached a terminal state, or a newer
			// Start superseded this one; drop late chunks.
			c.mu.Unlock()
			continue
		}

		if chunk.Error != nil {
			c.state = StateErrored
			c.err = chunk.Error
			c.mu.Unlock()
			c.notify()
			logger.Warn("stream failed", "error", chunk.Error)
			continue
		}

		if chunk.Delta != "" {
			c.state = StateStreaming
			c.buf.WriteString(chunk.Delta)
		}
		if chunk.FinishReason != nil {
			c.state = StateCompleted
		}
		c.mu.Unlock()
		c.notify()
	}

	// Channel closed without a terminal chunk (e.g. context canceled
	// upstream). Leave cancelled/errored states alone.
	c.mu.Lock()
	if c.gen == gen && (c.state == StateSending || c.state == StateStreaming) {
		c.state = StateCompleted
	}
	c.mu.Unlock()
	c.notify()
}

// Cancel stops the active stream, if any. The text accumulated so far is
// retained; chunks still in flight are discarded. Cancel on an idle or
// finished controller is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	active := c.state == StateSending || c.state == StateStreaming
	cancel := c.cancel
	if active {
		c.state = StateCancelled
	}
	c.mu.Unlock()

	if !active {
		return
	}
	if cancel != nil {
		cancel()
	}
	c.notify()
}

// Snapshot returns the controller's current state, accumulated text, and
// error.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Text: c.buf.String(), Err: c.err}
}

// finish records a terminal state if gen is still the current generation.
func (c *Controller) finish(gen uint64, state State, err error) {
	c.mu.Lock()
	if c.gen == gen {
		c.state = state
		c.err = err
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate(c.Snapshot())
	}
}

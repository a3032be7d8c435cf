package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyrebirdAI/console/gateway"
)

// fakeStream returns a StreamFunc that feeds the given chunks, blocking on
// gate between each if gate is non-nil.
func fakeStream(chunks []gateway.StreamChunk, gate chan struct{}) StreamFunc {
	return func(ctx context.Context, _ gateway.GenerateRequest) (<-chan gateway.StreamChunk, error) {
		out := make(chan gateway.StreamChunk)
		go func() {
			defer close(out)
			for _, chunk := range chunks {
				if gate != nil {
					select {
					case <-gate:
					case <-ctx.Done():
						return
					}
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

func deltas(texts ...string) []gateway.StreamChunk {
	var acc string
	chunks := make([]gateway.StreamChunk, 0, len(texts)+1)
	for _, text := range texts {
		acc += text
		chunks = append(chunks, gateway.StreamChunk{Content: acc, Delta: text})
	}
	stop := "STOP"
	chunks = append(chunks, gateway.StreamChunk{Content: acc, FinishReason: &stop})
	return chunks
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never finished")
	}
}

func TestController_AccumulatesInOrder(t *testing.T) {
	c := New(fakeStream(deltas("The ", "quick ", "fox"), nil))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "The quick fox", snap.Text)
	assert.NoError(t, snap.Err)
}

func TestController_SnapshotTextIsPrefixOfFinal(t *testing.T) {
	gate := make(chan struct{})
	c := New(fakeStream(deltas("a", "b", "c"), gate))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)

	want := []string{"a", "ab", "abc"}
	for _, expect := range want {
		gate <- struct{}{}
		require.Eventually(t, func() bool {
			return c.Snapshot().Text == expect
		}, 2*time.Second, time.Millisecond)
	}
	gate <- struct{}{} // finish chunk
	waitDone(t, done)
	assert.Equal(t, StateCompleted, c.Snapshot().State)
}

func TestController_CancelDiscardsLateChunks(t *testing.T) {
	gate := make(chan struct{})
	c := New(fakeStream(deltas("kept ", "also kept ", "dropped"), gate))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)

	gate <- struct{}{}
	gate <- struct{}{}
	require.Eventually(t, func() bool {
		return c.Snapshot().Text == "kept also kept "
	}, 2*time.Second, time.Millisecond)

	c.Cancel()
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, "kept also kept ", snap.Text)
}

func TestController_DiscardsDeltaAfterFinish(t *testing.T) {
	stop := "STOP"
	chunks := []gateway.StreamChunk{
		{Content: "ok", Delta: "ok"},
		{Content: "ok", FinishReason: &stop},
		{Content: "ok late", Delta: " late"},
	}
	c := New(fakeStream(chunks, nil))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "ok", snap.Text)
}

func TestController_DiscardsDeltaAfterError(t *testing.T) {
	streamErr := errors.New("upstream hiccup")
	chunks := []gateway.StreamChunk{
		{Content: "partial", Delta: "partial"},
		{Content: "partial", Error: streamErr},
		{Content: "partial extra", Delta: " extra"},
	}
	c := New(fakeStream(chunks, nil))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Equal(t, "partial", snap.Text)
	assert.ErrorIs(t, snap.Err, streamErr)
}

func TestController_CancelWhenIdleIsNoop(t *testing.T) {
	c := New(fakeStream(nil, nil))
	c.Cancel()
	assert.Equal(t, StateIdle, c.Snapshot().State)
}

func TestController_RejectsConcurrentStart(t *testing.T) {
	gate := make(chan struct{})
	c := New(fakeStream(deltas("x"), gate))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)

	_, err = c.Start(context.Background(), gateway.GenerateRequest{})
	assert.ErrorIs(t, err, ErrStreamActive)

	close(gate)
	waitDone(t, done)
}

func TestController_RestartAfterTerminal(t *testing.T) {
	c := New(fakeStream(deltas("first"), nil))
	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, "first", c.Snapshot().Text)

	c.stream = fakeStream(deltas("second"), nil)
	done, err = c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "second", snap.Text)
}

func TestController_StreamErrorRetainsPartialText(t *testing.T) {
	streamErr := errors.New("upstream hiccup")
	chunks := []gateway.StreamChunk{
		{Content: "partial", Delta: "partial"},
		{Content: "partial", Error: streamErr},
	}
	c := New(fakeStream(chunks, nil))

	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	snap := c.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Equal(t, "partial", snap.Text)
	assert.ErrorIs(t, snap.Err, streamErr)
}

func TestController_OpenFailureIsErrored(t *testing.T) {
	openErr := errors.New("dial failed")
	c := New(func(context.Context, gateway.GenerateRequest) (<-chan gateway.StreamChunk, error) {
		return nil, openErr
	})

	_, err := c.Start(context.Background(), gateway.GenerateRequest{})
	assert.ErrorIs(t, err, openErr)

	snap := c.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.ErrorIs(t, snap.Err, openErr)
}

func TestController_UpdateCallbackObservesProgress(t *testing.T) {
	var mu sync.Mutex
	var states []State
	record := func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	c := New(fakeStream(deltas("hi"), nil), WithUpdateFunc(record))
	done, err := c.Start(context.Background(), gateway.GenerateRequest{})
	require.NoError(t, err)
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StateSending, states[0])
	assert.Equal(t, StateCompleted, states[len(states)-1])
	assert.Contains(t, states, StateStreaming)
}

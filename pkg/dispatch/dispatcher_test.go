package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/uistream"
)

// stubBackend is a controllable agent.Backend for dispatcher tests.
type stubBackend struct {
	mu       sync.Mutex
	startErr error
	// startGate, when non-nil, blocks StartSession until closed.
	startGate chan struct{}
	// runGate, when non-nil, blocks each run after its first chunk until
	// closed or the run context is cancelled.
	runGate chan struct{}

	runCalls int
	active   int
	maxAct   int
	prompts  []string
}

func (b *stubBackend) StartSession(ctx context.Context) error {
	if b.startGate != nil {
		select {
		case <-b.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.startErr
}

func (b *stubBackend) Run(ctx context.Context, runID, prompt string) (<-chan agent.Event, error) {
	b.mu.Lock()
	b.runCalls++
	b.active++
	if b.active > b.maxAct {
		b.maxAct = b.active
	}
	b.prompts = append(b.prompts, prompt)
	gate := b.runGate
	b.mu.Unlock()

	out := make(chan agent.Event)
	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			b.active--
			b.mu.Unlock()
		}()

		out <- agent.Event{Type: agent.EventMessageChunk, Seq: 1, RunID: runID, Text: "partial "}
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return // cancelled: close without a terminal event
			}
		}
		out <- agent.Event{
			Type:  agent.EventRunCompleted,
			Seq:   2,
			RunID: runID,
			Text:  "partial done",
			Usage: &agent.TokenUsage{InputTokens: 5, OutputTokens: 7},
		}
	}()
	return out, nil
}

func (b *stubBackend) CloseSession() error { return nil }

func (b *stubBackend) snapshot() (calls, maxActive int, prompts []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runCalls, b.maxAct, append([]string(nil), b.prompts...)
}

// eventSink drains an adapter's stream into an inspectable slice.
type eventSink struct {
	mu     sync.Mutex
	events []uistream.Event
}

func drain(a *uistream.Adapter) *eventSink {
	s := &eventSink{}
	go func() {
		for ev := range a.Events() {
			s.mu.Lock()
			s.events = append(s.events, ev)
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *eventSink) count(kind uistream.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type recordedStatus struct {
	promptID string
	status   Status
}

// stubRecorder captures recorder callbacks for assertions.
type stubRecorder struct {
	mu       sync.Mutex
	prompts  []Prompt
	replies  []string
	statuses []recordedStatus
}

func (r *stubRecorder) RecordPrompt(p Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
	return nil
}

func (r *stubRecorder) RecordReply(promptID, runID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func (r *stubRecorder) RecordStatus(promptID string, status Status, errText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, recordedStatus{promptID: promptID, status: status})
	return nil
}

func (r *stubRecorder) last(promptID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.statuses) - 1; i >= 0; i-- {
		if r.statuses[i].promptID == promptID {
			return r.statuses[i].status, true
		}
	}
	return "", false
}

func newTestDispatcher(t *testing.T, backend *stubBackend, rec Recorder) (*Dispatcher, *agent.Executor, *eventSink, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	session := agent.NewSession(backend, logger)
	exec := agent.NewExecutor(session, logger)
	exec.Start()

	adapter := uistream.NewAdapter(128, logger)
	sink := drain(adapter)

	d, err := New(Config{Executor: exec, Adapter: adapter, Recorder: rec, Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
		exec.Close()
		adapter.Close()
	})
	return d, exec, sink, cancel
}

func TestDispatcherOrdering(t *testing.T) {
	t.Run("should process prompts in enqueue order even when queued before the agent is ready", func(t *testing.T) {
		backend := &stubBackend{startGate: make(chan struct{})}
		rec := &stubRecorder{}
		d, _, _, _ := newTestDispatcher(t, backend, rec)

		ids := make([]string, 0, 3)
		for _, text := range []string{"alpha", "beta", "gamma"} {
			id, ok := d.Enqueue(text)
			require.True(t, ok)
			ids = append(ids, id)
		}
		assert.Equal(t, 3, d.QueueDepth())

		close(backend.startGate)

		require.Eventually(t, func() bool {
			st, ok := rec.last(ids[2])
			return ok && st == StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		_, _, prompts := backend.snapshot()
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, prompts)
	})

	t.Run("should never run more than one prompt at a time", func(t *testing.T) {
		backend := &stubBackend{}
		rec := &stubRecorder{}
		d, _, _, _ := newTestDispatcher(t, backend, rec)

		var last string
		for i := 0; i < 5; i++ {
			id, ok := d.Enqueue("work")
			require.True(t, ok)
			last = id
		}

		require.Eventually(t, func() bool {
			st, ok := rec.last(last)
			return ok && st == StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		calls, maxActive, _ := backend.snapshot()
		assert.Equal(t, 5, calls)
		assert.Equal(t, 1, maxActive)
	})
}

func TestDispatcherStartupFailure(t *testing.T) {
	t.Run("should fail every queued prompt without reaching the backend", func(t *testing.T) {
		backend := &stubBackend{
			startGate: make(chan struct{}),
			startErr:  assert.AnError,
		}
		rec := &stubRecorder{}
		d, _, sink, _ := newTestDispatcher(t, backend, rec)

		idA, _ := d.Enqueue("first")
		idB, _ := d.Enqueue("second")
		close(backend.startGate)

		require.Eventually(t, func() bool {
			stA, okA := rec.last(idA)
			stB, okB := rec.last(idB)
			return okA && okB && stA == StatusFailed && stB == StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		calls, _, _ := backend.snapshot()
		assert.Equal(t, 0, calls, "no run may reach the backend after a startup failure")
		assert.GreaterOrEqual(t, sink.count(uistream.KindError), 2)

		// Later prompts fail the same way without waking the backend.
		idC, ok := d.Enqueue("third")
		require.True(t, ok)
		require.Eventually(t, func() bool {
			st, recd := rec.last(idC)
			return recd && st == StatusFailed
		}, 2*time.Second, 10*time.Millisecond)
		calls, _, _ = backend.snapshot()
		assert.Equal(t, 0, calls)
	})
}

func TestDispatcherCancellation(t *testing.T) {
	t.Run("should cancel the active run and leave queued prompts untouched", func(t *testing.T) {
		backend := &stubBackend{runGate: make(chan struct{})}
		rec := &stubRecorder{}
		d, _, sink, _ := newTestDispatcher(t, backend, rec)

		idA, _ := d.Enqueue("long running")

		require.Eventually(t, func() bool {
			cur := d.Snapshot()
			return cur != nil && cur.ID == idA
		}, 2*time.Second, 10*time.Millisecond)

		idB, _ := d.Enqueue("queued behind")

		require.True(t, d.CancelCurrent())

		// The cancelled prompt settles and the queued one still completes.
		require.Eventually(t, func() bool {
			stA, okA := rec.last(idA)
			return okA && stA == StatusCancelled
		}, 2*time.Second, 10*time.Millisecond)

		close(backend.runGate)
		require.Eventually(t, func() bool {
			stB, okB := rec.last(idB)
			return okB && stB == StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		assert.Equal(t, 1, sink.count(uistream.KindCancelled))
		_, _, prompts := backend.snapshot()
		assert.Equal(t, []string{"long running", "queued behind"}, prompts)
	})

	t.Run("should report false when no run is active", func(t *testing.T) {
		backend := &stubBackend{}
		d, _, _, _ := newTestDispatcher(t, backend, &stubRecorder{})

		assert.False(t, d.CancelCurrent())
		assert.Equal(t, 0, d.QueueDepth())
	})
}

func TestDispatcherShutdown(t *testing.T) {
	t.Run("should refuse enqueues after the loop has stopped", func(t *testing.T) {
		backend := &stubBackend{}
		d, _, _, cancel := newTestDispatcher(t, backend, &stubRecorder{})

		cancel()
		<-d.Done()

		_, ok := d.Enqueue("too late")
		assert.False(t, ok)
	})

	t.Run("should record a run interrupted by shutdown as cancelled", func(t *testing.T) {
		backend := &stubBackend{runGate: make(chan struct{})}
		rec := &stubRecorder{}
		d, _, sink, cancel := newTestDispatcher(t, backend, rec)

		id, _ := d.Enqueue("interrupted mid-stream")
		require.Eventually(t, func() bool {
			cur := d.Snapshot()
			return cur != nil && cur.ID == id
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		<-d.Done()

		st, ok := rec.last(id)
		require.True(t, ok)
		assert.Equal(t, StatusCancelled, st)
		assert.NotEqual(t, StatusCompleted, st)
		require.Eventually(t, func() bool {
			return sink.count(uistream.KindCancelled) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should discard queued prompts on shutdown", func(t *testing.T) {
		backend := &stubBackend{startGate: make(chan struct{})}
		rec := &stubRecorder{}
		d, _, _, cancel := newTestDispatcher(t, backend, rec)

		id, _ := d.Enqueue("never runs")
		cancel()
		<-d.Done()
		close(backend.startGate)

		st, ok := rec.last(id)
		require.True(t, ok)
		assert.Equal(t, StatusCancelled, st)
		calls, _, _ := backend.snapshot()
		assert.Equal(t, 0, calls)
	})
}

func TestDispatcherRecorder(t *testing.T) {
	t.Run("should record prompt, processing status and final reply", func(t *testing.T) {
		backend := &stubBackend{}
		rec := &stubRecorder{}
		d, _, _, _ := newTestDispatcher(t, backend, rec)

		id, _ := d.Enqueue("hello")

		require.Eventually(t, func() bool {
			st, ok := rec.last(id)
			return ok && st == StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		require.Len(t, rec.prompts, 1)
		assert.Equal(t, "hello", rec.prompts[0].Text)
		assert.Equal(t, StatusQueued, rec.prompts[0].Status)
		require.Len(t, rec.replies, 1)
		assert.Equal(t, "partial done", rec.replies[0])
		assert.Equal(t, recordedStatus{promptID: id, status: StatusProcessing}, rec.statuses[0])
	})
}

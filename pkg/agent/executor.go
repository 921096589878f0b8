package agent

import (
	"context"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/internal/tracing"
)

// State is the executor lifecycle state
type State string

const (
	// StateUninitialized is the state before Start is called
	StateUninitialized State = "uninitialized"
	// StateInitializing is the state while the session warms up in the background
	StateInitializing State = "initializing"
	// StateReady means the session is usable and no run is in flight
	StateReady State = "ready"
	// StateProcessing means a run is in flight
	StateProcessing State = "processing"
	// StateError is terminal: session acquisition failed
	StateError State = "error"
)

// Run ties a prompt to its in-flight event stream and cancellation token.
type Run struct {
	ID     string
	Prompt string

	events <-chan Event
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
}

// Events returns the run's lazy event stream. The channel closes when the
// run reaches a terminal state.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancelled reports whether cancellation was requested for this run.
func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Run) markCancelled() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

// Executor wraps the Session with background warm-up, a readiness gate, and
// the single-in-flight-run invariant.
type Executor struct {
	session *Session
	logger  zerolog.Logger

	ready   chan struct{} // closed when warm-up finishes, successfully or not
	initErr error         // set before ready is closed

	mu     sync.Mutex
	state  State
	active *Run

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewExecutor creates an executor around a session.
func NewExecutor(session *Session, logger zerolog.Logger) *Executor {
	return &Executor{
		session: session,
		logger:  logger.With().Str("component", "executor").Logger(),
		ready:   make(chan struct{}),
		state:   StateUninitialized,
	}
}

// Start begins session acquisition in the background and returns immediately.
// Acquisition failure is surfaced through EnsureReady, never swallowed.
func (e *Executor) Start() {
	e.startOnce.Do(func() {
		e.setState(StateInitializing)
		e.logger.Info().Msg("Starting session acquisition in background")

		go func() {
			err := e.session.Acquire(context.Background())
			if err != nil {
				e.initErr = &StartupError{Reason: err}
				e.setState(StateError)
				e.logger.Error().Err(err).Msg("Session acquisition failed")
			} else {
				e.setState(StateReady)
				e.logger.Info().Msg("Session ready")
			}
			close(e.ready)
		}()
	})
}

// EnsureReady suspends until the session is usable or acquisition failed.
// It resolves immediately once the session is ready, without re-triggering
// acquisition.
func (e *Executor) EnsureReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current executor state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run starts a new run for the prompt. It awaits readiness, rejects a second
// concurrent run with ErrRunActive, and returns a handle whose event stream
// terminates promptly on cancellation.
func (e *Executor) Run(ctx context.Context, prompt string) (*Run, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return nil, err
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, ErrRunActive
	}

	runCtx, cancel := context.WithCancel(tracing.WithRunID(ctx, runID))
	run := &Run{
		ID:     runID,
		Prompt: prompt,
		cancel: cancel,
	}
	e.active = run
	e.state = StateProcessing
	e.mu.Unlock()

	logger := tracing.LoggerFromContext(runCtx, e.logger)

	events, err := e.session.Run(runCtx, runID, prompt)
	if err != nil {
		cancel()
		e.finishRun(run)
		logger.Error().Err(err).Msg("Failed to start run")
		return nil, err
	}

	// Relay events so the executor observes stream termination and can
	// flip back to ready for the next run.
	out := make(chan Event)
	run.events = out
	go func() {
		defer func() {
			cancel()
			e.finishRun(run)
			close(out)
			logger.Debug().Msg("Run stream closed")
		}()
		for ev := range events {
			out <- ev
		}
	}()

	logger.Info().Str("prompt", prompt).Msg("Run started")
	return run, nil
}

func (e *Executor) finishRun(run *Run) {
	e.mu.Lock()
	if e.active == run {
		e.active = nil
		if e.state == StateProcessing {
			e.state = StateReady
		}
	}
	e.mu.Unlock()
}

// CancelActive requests cooperative cancellation of the in-flight run.
// Returns false with no side effect when nothing is running.
func (e *Executor) CancelActive() bool {
	e.mu.Lock()
	run := e.active
	e.mu.Unlock()

	if run == nil {
		e.logger.Debug().Msg("No active run to cancel")
		return false
	}

	e.logger.Info().Str("run_id", run.ID).Msg("Cancelling active run")
	run.markCancelled()
	run.cancel()
	return true
}

// Active returns the in-flight run, if any.
func (e *Executor) Active() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Close cancels any active run and releases the session exactly once. Safe
// to call even if acquisition never completed.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.CancelActive()
		e.closeErr = e.session.Release()
	})
	return e.closeErr
}

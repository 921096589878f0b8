package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/internal/metrics"
	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/uistream"
)

// Status is the lifecycle state of an enqueued prompt.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Prompt is one unit of work submitted to the dispatcher.
type Prompt struct {
	ID         string
	Text       string
	EnqueuedAt time.Time
	Status     Status
	Err        string
}

// Recorder persists prompts and replies as they flow through the dispatcher.
// Implementations must tolerate being called from the worker goroutine.
type Recorder interface {
	RecordPrompt(p Prompt) error
	RecordReply(promptID, runID, text string) error
	RecordStatus(promptID string, status Status, errText string) error
}

// Config carries the dispatcher's dependencies.
type Config struct {
	Executor *agent.Executor
	Adapter  *uistream.Adapter
	Recorder Recorder // optional
	Logger   zerolog.Logger
}

// Dispatcher owns the prompt queue and the single worker loop that feeds
// prompts to the executor one at a time.
type Dispatcher struct {
	exec     *agent.Executor
	adapter  *uistream.Adapter
	recorder Recorder
	logger   zerolog.Logger

	mu      sync.Mutex
	queue   []*Prompt
	current *Prompt
	fatal   error
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	startOnce sync.Once
}

// New validates cfg and returns an idle dispatcher. Start must be called
// before enqueued prompts are processed.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Executor == nil {
		return nil, errors.New("dispatch: executor is required")
	}
	if cfg.Adapter == nil {
		return nil, errors.New("dispatch: adapter is required")
	}
	metrics.EnsureRegistered()
	return &Dispatcher{
		exec:     cfg.Executor,
		adapter:  cfg.Adapter,
		recorder: cfg.Recorder,
		logger:   cfg.Logger.With().Str("component", "dispatch").Logger(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the worker loop. It is safe to call at most once; later
// calls are no-ops. The loop exits when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.loop(ctx)
	})
}

// Done is closed once the worker loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Enqueue appends a prompt to the queue and returns its assigned ID.
// It reports false once the dispatcher has shut down.
func (d *Dispatcher) Enqueue(text string) (string, bool) {
	p := &Prompt{
		ID:         uuid.NewString(),
		Text:       text,
		EnqueuedAt: time.Now(),
		Status:     StatusQueued,
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", false
	}
	d.queue = append(d.queue, p)
	depth := len(d.queue)
	d.mu.Unlock()

	metrics.SetQueueDepth(depth)
	d.adapter.PromptQueued(p.ID, p.Text)
	if d.recorder != nil {
		if err := d.recorder.RecordPrompt(*p); err != nil {
			d.logger.Warn().Err(err).Str("prompt_id", p.ID).Msg("failed to record prompt")
		}
	}

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return p.ID, true
}

// CancelCurrent aborts the run in flight, if any. It reports false and
// leaves all state untouched when nothing is processing. Queued prompts
// are never affected.
func (d *Dispatcher) CancelCurrent() bool {
	if !d.exec.CancelActive() {
		return false
	}

	d.mu.Lock()
	if d.current != nil {
		d.current.Status = StatusCancelled
	}
	d.mu.Unlock()

	metrics.RecordCancellation()
	return true
}

// QueueDepth returns the number of prompts waiting to be processed.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Snapshot returns a copy of the prompt currently in flight, or nil.
func (d *Dispatcher) Snapshot() *Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	cp := *d.current
	return &cp
}

func (d *Dispatcher) pop() *Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	p := d.queue[0]
	d.queue = d.queue[1:]
	metrics.SetQueueDepth(len(d.queue))
	return p
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	defer d.shutdown()

	for {
		p := d.pop()
		if p == nil {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}

		d.mu.Lock()
		fatal := d.fatal
		d.mu.Unlock()
		if fatal != nil {
			d.fail(p, fatal)
			continue
		}

		if err := d.exec.EnsureReady(ctx); err != nil {
			if ctx.Err() != nil {
				d.discard(p)
				return
			}
			// Startup failure is permanent: every prompt from here on
			// fails without a run ever reaching the backend.
			d.mu.Lock()
			d.fatal = err
			d.mu.Unlock()
			d.logger.Error().Err(err).Msg("agent startup failed; failing all queued prompts")
			d.fail(p, err)
			continue
		}

		d.process(ctx, p)
	}
}

func (d *Dispatcher) process(ctx context.Context, p *Prompt) {
	d.mu.Lock()
	p.Status = StatusProcessing
	d.current = p
	d.mu.Unlock()
	d.setStatus(p.ID, StatusProcessing, "")

	start := time.Now()
	run, err := d.exec.Run(ctx, p.Text)
	if err != nil {
		d.mu.Lock()
		d.current = nil
		d.mu.Unlock()
		d.fail(p, err)
		return
	}

	d.logger.Info().
		Str("prompt_id", p.ID).
		Str("run_id", run.ID).
		Msg("run started")
	d.adapter.RunStarted(p.ID, run.ID)

	failed := false
	completed := false
	var usage *agent.TokenUsage
	for ev := range run.Events() {
		switch ev.Type {
		case agent.EventRunFailed:
			failed = true
		case agent.EventRunCompleted:
			completed = true
			usage = ev.Usage
			if d.recorder != nil {
				if rerr := d.recorder.RecordReply(p.ID, run.ID, ev.Text); rerr != nil {
					d.logger.Warn().Err(rerr).Str("prompt_id", p.ID).Msg("failed to record reply")
				}
			}
		}
		d.adapter.Consume(p.ID, ev)
	}

	elapsed := time.Since(start).Seconds()
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()

	switch {
	case failed:
		p.Status = StatusFailed
		d.setStatus(p.ID, StatusFailed, "run failed")
		metrics.RecordRun("failed", elapsed)
	case completed:
		p.Status = StatusCompleted
		d.setStatus(p.ID, StatusCompleted, "")
		metrics.RecordRun("completed", elapsed)
	default:
		// The stream ended without a terminal event: the run was aborted,
		// either by an explicit cancel or by the worker context dying
		// during shutdown. Never record that as completed.
		p.Status = StatusCancelled
		d.adapter.RunCancelled(p.ID, run.ID)
		d.setStatus(p.ID, StatusCancelled, "")
		metrics.RecordRun("cancelled", elapsed)
	}
	if usage != nil {
		metrics.AddTokens(usage.InputTokens, usage.OutputTokens)
	}
	d.logger.Info().
		Str("prompt_id", p.ID).
		Str("status", string(p.Status)).
		Float64("elapsed_s", elapsed).
		Msg("run finished")
}

// fail marks a single prompt FAILED and surfaces the cause on the UI stream.
func (d *Dispatcher) fail(p *Prompt, cause error) {
	d.mu.Lock()
	p.Status = StatusFailed
	p.Err = cause.Error()
	d.mu.Unlock()

	d.adapter.ReportError(p.ID, cause)
	d.setStatus(p.ID, StatusFailed, cause.Error())
	metrics.RecordRun("failed", 0)
}

// discard marks a prompt cancelled during shutdown without running it.
func (d *Dispatcher) discard(p *Prompt) {
	d.mu.Lock()
	p.Status = StatusCancelled
	d.mu.Unlock()
	d.setStatus(p.ID, StatusCancelled, "")
}

// shutdown rejects further enqueues and discards whatever is still queued.
func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.closed = true
	rest := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, p := range rest {
		d.discard(p)
	}
	metrics.SetQueueDepth(0)
	d.logger.Info().Int("discarded", len(rest)).Msg("dispatcher stopped")
}

func (d *Dispatcher) setStatus(promptID string, status Status, errText string) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordStatus(promptID, status, errText); err != nil {
		d.logger.Warn().Err(err).Str("prompt_id", promptID).Msg("failed to record status")
	}
}

// Package uistream translates agent events into presentation events.
//
// The adapter is the one-way consumer at the end of the pipeline: it keeps
// only light numeric state (token counters, run timing) and never touches
// prompt or session state. Delivery order mirrors the sequence numbers of
// the originating agent events.
package uistream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/agent"
)

// Adapter converts agent.Event values into Event values on a bounded
// channel. Sends block when the consumer lags, which keeps ordering and
// backpressure explicit.
type Adapter struct {
	out    chan Event
	logger zerolog.Logger

	mu           sync.Mutex
	inputTokens  int // committed across runs
	outputTokens int // committed across runs
	runEstimate  int // current run's estimated output, discarded once usage arrives
	runStarted   time.Time
	closeOnce    sync.Once
}

// NewAdapter creates an adapter with the given channel capacity.
func NewAdapter(buffer int, logger zerolog.Logger) *Adapter {
	if buffer <= 0 {
		buffer = 256
	}
	return &Adapter{
		out:    make(chan Event, buffer),
		logger: logger.With().Str("component", "uistream").Logger(),
	}
}

// Events returns the consumer-facing event stream.
func (a *Adapter) Events() <-chan Event {
	return a.out
}

func (a *Adapter) send(ev Event) {
	ev.Timestamp = time.Now()
	a.out <- ev
}

// PromptQueued reports a newly queued prompt.
func (a *Adapter) PromptQueued(promptID, text string) {
	a.send(Event{Kind: KindPromptQueued, PromptID: promptID, Text: text})
}

// RunStarted resets per-run timing and the output estimate, and announces
// the new run.
func (a *Adapter) RunStarted(promptID, runID string) {
	a.mu.Lock()
	a.runStarted = time.Now()
	a.runEstimate = 0
	a.mu.Unlock()
	a.send(Event{Kind: KindStatus, PromptID: promptID, RunID: runID, Text: "thinking"})
}

// Consume translates one agent event. A tool-call start expands into a
// status update plus a log line.
func (a *Adapter) Consume(promptID string, ev agent.Event) {
	switch ev.Type {
	case agent.EventReasoning:
		a.send(Event{Kind: KindReasoning, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, Text: ev.Text})

	case agent.EventToolCallStarted:
		a.send(Event{Kind: KindStatus, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, Text: "running " + ev.ToolName})
		a.send(Event{Kind: KindToolCall, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, ToolName: ev.ToolName, Text: ev.ToolName + "(" + ev.ToolArgs + ")"})

	case agent.EventToolCallFinished:
		a.send(Event{Kind: KindToolDone, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, ToolName: ev.ToolName})

	case agent.EventMessageChunk:
		a.mu.Lock()
		a.runEstimate += estimateTokens(ev.Text)
		a.mu.Unlock()
		a.send(Event{Kind: KindAssistantDelta, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, Text: ev.Text})

	case agent.EventRunCompleted:
		elapsed := a.elapsed()
		a.mu.Lock()
		// The reported usage is authoritative for this run; the chunk
		// estimate only stands in when the provider reported nothing.
		tokens := a.runEstimate
		if ev.Usage != nil {
			a.inputTokens += ev.Usage.InputTokens
			tokens = ev.Usage.OutputTokens
		}
		a.outputTokens += tokens
		a.runEstimate = 0
		a.mu.Unlock()
		a.send(Event{Kind: KindAssistantMessage, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, Text: ev.Text, Tokens: tokens, Elapsed: elapsed})

	case agent.EventRunFailed:
		a.send(Event{Kind: KindError, SourceSeq: ev.Seq, RunID: ev.RunID, PromptID: promptID, Text: ev.Error, Elapsed: a.elapsed()})

	default:
		a.logger.Warn().Str("type", string(ev.Type)).Msg("Unknown agent event type")
	}
}

// RunCancelled reports that the active run was cancelled.
func (a *Adapter) RunCancelled(promptID, runID string) {
	a.send(Event{Kind: KindCancelled, PromptID: promptID, RunID: runID, Text: "run cancelled", Elapsed: a.elapsed()})
}

// ReportError emits an error that did not originate from an agent event,
// such as a startup failure.
func (a *Adapter) ReportError(promptID string, err error) {
	a.send(Event{Kind: KindError, PromptID: promptID, Text: err.Error()})
}

// TokenCounts returns the accumulated input and output token counters.
func (a *Adapter) TokenCounts() (input, output int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputTokens, a.outputTokens
}

func (a *Adapter) elapsed() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runStarted.IsZero() {
		return 0
	}
	return time.Since(a.runStarted).Seconds()
}

// Close closes the outgoing stream. Call only after the dispatcher stopped.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.out)
	})
}

// estimateTokens approximates a token count as 4 characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

package agent

import "time"

// EventType tags the variants of Event
type EventType string

const (
	// EventReasoning is a reasoning summary step
	EventReasoning EventType = "reasoning"
	// EventToolCallStarted marks the start of a tool invocation
	EventToolCallStarted EventType = "tool_call_started"
	// EventToolCallFinished marks the end of a tool invocation
	EventToolCallFinished EventType = "tool_call_finished"
	// EventMessageChunk is an incremental piece of assistant output
	EventMessageChunk EventType = "message_chunk"
	// EventRunCompleted terminates a successful run
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed terminates a failed run
	EventRunFailed EventType = "run_failed"
)

// Event is a single item in a run's event stream. Seq is scoped to the
// originating run and strictly increasing from 1.
type Event struct {
	Type      EventType   `json:"type"`
	Seq       uint64      `json:"seq"`
	RunID     string      `json:"run_id"`
	Text      string      `json:"text,omitempty"`
	ToolName  string      `json:"tool_name,omitempty"`
	ToolArgs  string      `json:"tool_args,omitempty"`
	Error     string      `json:"error,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Terminal reports whether the event ends its run.
func (e Event) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

// TokenUsage tracks token consumption for a run
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// emitter assigns per-run sequence numbers and delivers events in order.
type emitter struct {
	runID string
	seq   uint64
	out   chan<- Event
}

func newEmitter(runID string, out chan<- Event) *emitter {
	return &emitter{runID: runID, out: out}
}

func (e *emitter) emit(ev Event) {
	e.seq++
	ev.Seq = e.seq
	ev.RunID = e.runID
	ev.Timestamp = time.Now()
	e.out <- ev
}

func (e *emitter) reasoning(text string) {
	e.emit(Event{Type: EventReasoning, Text: text})
}

func (e *emitter) chunk(text string) {
	e.emit(Event{Type: EventMessageChunk, Text: text})
}

func (e *emitter) toolStarted(name, args string) {
	e.emit(Event{Type: EventToolCallStarted, ToolName: name, ToolArgs: args})
}

func (e *emitter) toolFinished(name string) {
	e.emit(Event{Type: EventToolCallFinished, ToolName: name})
}

func (e *emitter) completed(finalText string, usage *TokenUsage) {
	e.emit(Event{Type: EventRunCompleted, Text: finalText, Usage: usage})
}

func (e *emitter) failed(err error) {
	e.emit(Event{Type: EventRunFailed, Error: err.Error()})
}

package uistream

import "time"

// Kind tags the variants of Event
type Kind string

const (
	// KindStatus is a status-panel update ("thinking", "running tool", ...)
	KindStatus Kind = "status"
	// KindPromptQueued reports a prompt waiting in the queue
	KindPromptQueued Kind = "prompt_queued"
	// KindAssistantDelta is an incremental piece of assistant output
	KindAssistantDelta Kind = "assistant_delta"
	// KindAssistantMessage is the full assistant reply for a run
	KindAssistantMessage Kind = "assistant_message"
	// KindReasoning is a reasoning summary line
	KindReasoning Kind = "reasoning"
	// KindToolCall is a log line for a tool invocation
	KindToolCall Kind = "tool_call"
	// KindToolDone is a log line for a finished tool invocation
	KindToolDone Kind = "tool_done"
	// KindError reports a failed run or startup failure
	KindError Kind = "error"
	// KindCancelled reports a cancelled run
	KindCancelled Kind = "cancelled"
)

// Event is the presentation-facing event. Pure data: it owns no session
// resources.
type Event struct {
	Kind      Kind      `json:"kind"`
	SourceSeq uint64    `json:"source_seq,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	PromptID  string    `json:"prompt_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	Elapsed   float64   `json:"elapsed_seconds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

package agent

import "context"

// Backend is the protocol the executor consumes to talk to the underlying
// agent implementation. The orchestration layer treats it as an opaque
// capability set; providers in this package implement it over the OpenAI and
// Anthropic SDKs.
//
// Run returns a lazy event stream. The channel is closed when the run ends,
// whether it completed, failed, or was cancelled through ctx. Implementations
// must keep their internal state reusable after a cancelled run.
type Backend interface {
	// StartSession establishes the long-lived connection. Called once.
	StartSession(ctx context.Context) error

	// Run issues one prompt against the session and streams events back.
	Run(ctx context.Context, runID, prompt string) (<-chan Event, error)

	// CloseSession tears the connection down. Called exactly once.
	CloseSession() error
}

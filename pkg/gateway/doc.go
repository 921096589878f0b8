// Package gateway exposes the conversation's UI event stream to external
// observers over WebSocket, alongside /metrics and /healthz endpoints.
//
// The gateway is strictly read-only: observers cannot enqueue prompts or
// cancel runs. Slow clients are disconnected rather than allowed to apply
// backpressure to the conversation.
package gateway

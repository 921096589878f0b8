// Package dispatch serializes prompt execution against the agent executor.
//
// Invariants:
// - Prompts are processed strictly in enqueue order.
// - At most one prompt is PROCESSING at any time.
// - The queue is unbounded; Enqueue never blocks on execution.
// - A failed run never stalls the worker loop; the next prompt proceeds.
// - A startup failure fails every queued and future prompt without a run
//   ever reaching the backend.
//
// Usage:
//
//	d, _ := dispatch.New(dispatch.Config{Executor: exec, Adapter: adapter, Logger: logger})
//	d.Start(ctx)
//	id, _ := d.Enqueue("hello")
//	_ = id
package dispatch

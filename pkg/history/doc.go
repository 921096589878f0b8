// Package history persists the conversation transcript in SQLite.
//
// The store implements dispatch.Recorder, so the dispatcher writes every
// prompt, status transition and final reply as it happens. Rows survive
// process restarts; the REPL uses Recent to replay the tail of a previous
// conversation.
//
// Invariants:
// - A prompt row exists before any status or reply row referencing it.
// - Status updates are idempotent; the latest write wins.
// - The store never blocks prompt execution: failures are returned to the
//   caller and logged, not retried.
package history

// Package console implements the interactive REPL and the headless
// single-prompt mode.
//
// The REPL reads lines from stdin: slash commands act on the session
// locally, anything else is enqueued for the agent. Streamed UI events are
// rendered by Printer on stdout; logs stay on stderr so transcripts pipe
// cleanly.
package console

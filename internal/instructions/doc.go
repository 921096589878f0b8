// Package instructions builds the agent's system prompt and keeps it in
// sync with the repository's AGENTS.md file.
//
// The composed prompt is the base prompt for the configured mode plus the
// project instructions file, when present. A filesystem watcher reloads the
// file on change; the new text takes effect on the next run, never mid-run.
package instructions

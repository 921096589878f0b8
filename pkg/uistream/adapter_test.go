package uistream

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/agent"
)

func collect(a *Adapter, n int) []Event {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, <-a.Events())
	}
	return events
}

func TestConsume(t *testing.T) {
	t.Run("should translate chunks preserving source order", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		for seq := uint64(1); seq <= 3; seq++ {
			a.Consume("p1", agent.Event{Type: agent.EventMessageChunk, Seq: seq, RunID: "r1", Text: "x"})
		}

		events := collect(a, 3)
		for i, ev := range events {
			assert.Equal(t, KindAssistantDelta, ev.Kind)
			assert.Equal(t, uint64(i+1), ev.SourceSeq)
			assert.Equal(t, "p1", ev.PromptID)
		}
	})

	t.Run("should expand tool call start into status and log line", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		a.Consume("p1", agent.Event{Type: agent.EventToolCallStarted, Seq: 4, RunID: "r1", ToolName: "grep", ToolArgs: `{"q":"x"}`})

		events := collect(a, 2)
		assert.Equal(t, KindStatus, events[0].Kind)
		assert.Contains(t, events[0].Text, "grep")
		assert.Equal(t, KindToolCall, events[1].Kind)
		assert.Equal(t, uint64(4), events[1].SourceSeq)
		assert.Contains(t, events[1].Text, `grep({"q":"x"})`)
	})

	t.Run("should accumulate token usage on completion", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		a.Consume("p1", agent.Event{
			Type:  agent.EventRunCompleted,
			Seq:   9,
			RunID: "r1",
			Text:  "final answer",
			Usage: &agent.TokenUsage{InputTokens: 10, OutputTokens: 20},
		})

		ev := collect(a, 1)[0]
		assert.Equal(t, KindAssistantMessage, ev.Kind)
		assert.Equal(t, "final answer", ev.Text)
		assert.Equal(t, 20, ev.Tokens)

		in, out := a.TokenCounts()
		assert.Equal(t, 10, in)
		assert.Equal(t, 20, out)
	})

	t.Run("should sum token usage across consecutive runs", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		for i, runID := range []string{"r1", "r2"} {
			a.RunStarted("p1", runID)
			a.Consume("p1", agent.Event{Type: agent.EventMessageChunk, Seq: uint64(2*i + 1), RunID: runID, Text: "some partial text"})
			a.Consume("p1", agent.Event{
				Type:  agent.EventRunCompleted,
				Seq:   uint64(2*i + 2),
				RunID: runID,
				Text:  "done",
				Usage: &agent.TokenUsage{InputTokens: 10, OutputTokens: 20},
			})
		}

		collect(a, 6)
		in, out := a.TokenCounts()
		assert.Equal(t, 20, in)
		assert.Equal(t, 40, out)
	})

	t.Run("should fall back to the chunk estimate when usage is absent", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		a.RunStarted("p1", "r1")
		a.Consume("p1", agent.Event{Type: agent.EventMessageChunk, Seq: 1, RunID: "r1", Text: "abcdefgh"})
		a.Consume("p1", agent.Event{Type: agent.EventRunCompleted, Seq: 2, RunID: "r1", Text: "abcdefgh"})

		events := collect(a, 3)
		final := events[2]
		assert.Equal(t, KindAssistantMessage, final.Kind)
		assert.Equal(t, 2, final.Tokens)

		_, out := a.TokenCounts()
		assert.Equal(t, 2, out)
	})

	t.Run("should translate run failure into error event", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		a.Consume("p1", agent.Event{Type: agent.EventRunFailed, Seq: 2, RunID: "r1", Error: "rate limited"})

		ev := collect(a, 1)[0]
		assert.Equal(t, KindError, ev.Kind)
		assert.Equal(t, "rate limited", ev.Text)
	})
}

func TestAdapterSignals(t *testing.T) {
	t.Run("should emit queued, started and cancelled markers", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())

		a.PromptQueued("p1", "do things")
		a.RunStarted("p1", "r1")
		a.RunCancelled("p1", "r1")

		events := collect(a, 3)
		assert.Equal(t, KindPromptQueued, events[0].Kind)
		assert.Equal(t, KindStatus, events[1].Kind)
		assert.Equal(t, KindCancelled, events[2].Kind)
	})

	t.Run("should close the stream exactly once", func(t *testing.T) {
		a := NewAdapter(16, zerolog.Nop())
		a.Close()
		a.Close()

		_, open := <-a.Events()
		require.False(t, open)
	})
}

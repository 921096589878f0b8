package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/dispatch"
	"github.com/quillhq/quill/pkg/uistream"
)

// echoBackend completes every run with a fixed reply.
type echoBackend struct{ reply string }

func (echoBackend) StartSession(context.Context) error { return nil }
func (b echoBackend) Run(ctx context.Context, runID, prompt string) (<-chan agent.Event, error) {
	out := make(chan agent.Event)
	go func() {
		defer close(out)
		out <- agent.Event{Type: agent.EventMessageChunk, Seq: 1, RunID: runID, Text: b.reply}
		out <- agent.Event{Type: agent.EventRunCompleted, Seq: 2, RunID: runID, Text: b.reply}
	}()
	return out, nil
}
func (echoBackend) CloseSession() error { return nil }

func newPipeline(t *testing.T) (*dispatch.Dispatcher, *agent.Executor, *uistream.Adapter) {
	t.Helper()
	logger := zerolog.Nop()
	exec := agent.NewExecutor(agent.NewSession(echoBackend{reply: "hello from quill"}, logger), logger)
	exec.Start()
	t.Cleanup(func() { exec.Close() })

	adapter := uistream.NewAdapter(64, logger)
	d, err := dispatch.New(dispatch.Config{Executor: exec, Adapter: adapter, Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
		adapter.Close()
	})
	return d, exec, adapter
}

func TestPrinter(t *testing.T) {
	t.Run("should stream deltas onto one line and break before block output", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf)

		p.Print(uistream.Event{Kind: uistream.KindAssistantDelta, Text: "hel"})
		p.Print(uistream.Event{Kind: uistream.KindAssistantDelta, Text: "lo"})
		p.Print(uistream.Event{Kind: uistream.KindStatus, Text: "running tool"})

		assert.Equal(t, "hello\n• running tool\n", buf.String())
	})

	t.Run("should render tool call lines", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf)

		p.Print(uistream.Event{Kind: uistream.KindToolCall, ToolName: "shell", Text: `{"cmd":"ls"}`})
		p.Print(uistream.Event{Kind: uistream.KindToolDone, ToolName: "shell"})

		out := buf.String()
		assert.Contains(t, out, "→ shell")
		assert.Contains(t, out, "← shell finished")
	})

	t.Run("should summarize a completed run with token counts", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf)

		p.Print(uistream.Event{Kind: uistream.KindAssistantMessage, Tokens: 42, Elapsed: 1.5})
		assert.Contains(t, buf.String(), "42 tokens")
	})
}

func TestREPLCommands(t *testing.T) {
	newREPL := func(t *testing.T, out *bytes.Buffer) *REPL {
		d, exec, adapter := newPipeline(t)
		go func() {
			for range adapter.Events() {
			}
		}()
		return New(Config{
			In:         strings.NewReader(""),
			Printer:    NewPrinter(out),
			Dispatcher: d,
			Executor:   exec,
			Version:    "test",
			Logger:     zerolog.Nop(),
		})
	}

	t.Run("should list commands on /help", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)

		assert.True(t, r.handleLine("/help"))
		assert.Contains(t, out.String(), "/cancel")
		assert.Contains(t, out.String(), "/status")
	})

	t.Run("should stop the loop on /exit", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)
		assert.False(t, r.handleLine("/exit"))
		assert.False(t, r.handleLine("/quit"))
	})

	t.Run("should report unknown commands", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)
		assert.True(t, r.handleLine("/bogus"))
		assert.Contains(t, out.String(), "unknown command /bogus")
	})

	t.Run("should report state on /status", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)
		assert.True(t, r.handleLine("/status"))
		assert.Contains(t, out.String(), "state:")
	})

	t.Run("should say when there is nothing to cancel", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)
		assert.True(t, r.handleLine("/cancel"))
		assert.Contains(t, out.String(), "nothing to cancel")
	})

	t.Run("should ignore blank lines", func(t *testing.T) {
		var out bytes.Buffer
		r := newREPL(t, &out)
		assert.True(t, r.handleLine("   "))
		assert.Empty(t, out.String())
	})
}

func TestTruncate(t *testing.T) {
	t.Run("should leave short strings alone", func(t *testing.T) {
		assert.Equal(t, "hello", truncate("hello", 10))
	})

	t.Run("should cut on rune boundaries", func(t *testing.T) {
		got := truncate(strings.Repeat("héllo wörld ", 10), 20)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, 20, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}

func TestHeadless(t *testing.T) {
	t.Run("should run one prompt to completion and render the stream", func(t *testing.T) {
		d, _, adapter := newPipeline(t)

		var buf bytes.Buffer
		printer := NewPrinter(&buf)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := Headless(ctx, d, adapter.Events(), printer, "say hello")
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "prompt: say hello")
		assert.Contains(t, out, "hello from quill")
	})
}

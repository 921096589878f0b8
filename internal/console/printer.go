package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/quillhq/quill/pkg/uistream"
)

// Printer renders UI events as terminal output. Deltas stream onto one
// line; everything else gets its own.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	streaming bool
}

// NewPrinter writes rendered events to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Print renders one event.
func (p *Printer) Print(ev uistream.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case uistream.KindAssistantDelta:
		fmt.Fprint(p.out, ev.Text)
		p.streaming = true

	case uistream.KindAssistantMessage:
		p.breakLine()
		if ev.Tokens > 0 {
			fmt.Fprintf(p.out, "• done (%d tokens, %.1fs)\n", ev.Tokens, ev.Elapsed)
		} else {
			fmt.Fprintln(p.out, "• done")
		}

	case uistream.KindStatus:
		p.breakLine()
		fmt.Fprintf(p.out, "• %s\n", ev.Text)

	case uistream.KindReasoning:
		p.breakLine()
		fmt.Fprintf(p.out, "· %s\n", ev.Text)

	case uistream.KindToolCall:
		p.breakLine()
		fmt.Fprintf(p.out, "→ %s %s\n", ev.ToolName, ev.Text)

	case uistream.KindToolDone:
		p.breakLine()
		fmt.Fprintf(p.out, "← %s finished\n", ev.ToolName)

	case uistream.KindPromptQueued:
		p.breakLine()
		fmt.Fprintln(p.out, "• prompt queued")

	case uistream.KindError:
		p.breakLine()
		fmt.Fprintf(p.out, "✗ %s\n", ev.Text)

	case uistream.KindCancelled:
		p.breakLine()
		fmt.Fprintln(p.out, "✗ run cancelled")
	}
}

// Say prints system text through the same lock the event stream uses, so
// command output never lands mid-delta.
func (p *Printer) Say(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fmt.Fprintln(p.out, text)
}

// breakLine terminates a streaming line before block output.
func (p *Printer) breakLine() {
	if p.streaming {
		fmt.Fprintln(p.out)
		p.streaming = false
	}
}

package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillhq/quill/pkg/dispatch"
	"github.com/quillhq/quill/pkg/uistream"
)

// Headless executes a single prompt and renders its stream until the run
// settles. The process exit code distinguishes success from failure.
func Headless(ctx context.Context, d *dispatch.Dispatcher, events <-chan uistream.Event, printer *Printer, prompt string) error {
	printer.Say("prompt: " + prompt)

	id, ok := d.Enqueue(prompt)
	if !ok {
		return errors.New("session is shutting down")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return errors.New("event stream closed before the run settled")
			}
			printer.Print(ev)
			if ev.PromptID != id {
				continue
			}
			switch ev.Kind {
			case uistream.KindAssistantMessage:
				return nil
			case uistream.KindCancelled:
				return errors.New("run cancelled")
			case uistream.KindError:
				return fmt.Errorf("run failed: %s", ev.Text)
			}
		}
	}
}

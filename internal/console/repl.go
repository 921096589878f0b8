package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/dispatch"
	"github.com/quillhq/quill/pkg/history"
)

// Transcript is the slice of the history store the REPL needs.
type Transcript interface {
	Recent(limit int) ([]history.Entry, error)
	Clear() error
}

// REPL drives the interactive loop.
type REPL struct {
	in         io.Reader
	printer    *Printer
	dispatcher *dispatch.Dispatcher
	executor   *agent.Executor
	transcript Transcript // optional
	version    string
	logger     zerolog.Logger

	commands map[string]command
}

type command struct {
	help string
	run  func(args string) bool // false stops the loop
}

// Config holds REPL dependencies.
type Config struct {
	In         io.Reader
	Printer    *Printer
	Dispatcher *dispatch.Dispatcher
	Executor   *agent.Executor
	Transcript Transcript
	Version    string
	Logger     zerolog.Logger
}

// New builds a REPL with the full slash command set registered.
func New(cfg Config) *REPL {
	r := &REPL{
		in:         cfg.In,
		printer:    cfg.Printer,
		dispatcher: cfg.Dispatcher,
		executor:   cfg.Executor,
		transcript: cfg.Transcript,
		version:    cfg.Version,
		logger:     cfg.Logger.With().Str("component", "console").Logger(),
	}
	r.registerCommands()
	return r
}

func (r *REPL) registerCommands() {
	r.commands = map[string]command{
		"help": {
			help: "show available commands",
			run: func(string) bool {
				names := make([]string, 0, len(r.commands))
				for name := range r.commands {
					names = append(names, name)
				}
				sort.Strings(names)

				var b strings.Builder
				b.WriteString("Available commands:\n")
				for _, name := range names {
					fmt.Fprintf(&b, "  /%-8s %s\n", name, r.commands[name].help)
				}
				r.printer.Say(strings.TrimRight(b.String(), "\n"))
				return true
			},
		},
		"clear": {
			help: "clear the screen and the stored transcript",
			run: func(string) bool {
				r.printer.Say("\033[2J\033[H")
				if r.transcript != nil {
					if err := r.transcript.Clear(); err != nil {
						r.printer.Say("failed to clear transcript: " + err.Error())
					}
				}
				return true
			},
		},
		"version": {
			help: "show version information",
			run: func(string) bool {
				r.printer.Say("quill " + r.version)
				return true
			},
		},
		"status": {
			help: "show agent state and queue depth",
			run: func(string) bool {
				msg := fmt.Sprintf("state: %s, queued: %d", r.executor.State(), r.dispatcher.QueueDepth())
				if cur := r.dispatcher.Snapshot(); cur != nil {
					msg += fmt.Sprintf(", current: %q (%s)", truncate(cur.Text, 40), cur.Status)
				}
				r.printer.Say(msg)
				return true
			},
		},
		"cancel": {
			help: "cancel the run in progress",
			run: func(string) bool {
				if r.dispatcher.CancelCurrent() {
					r.printer.Say("cancelling current run")
				} else {
					r.printer.Say("nothing to cancel")
				}
				return true
			},
		},
		"history": {
			help: "show recent transcript entries",
			run: func(string) bool {
				if r.transcript == nil {
					r.printer.Say("history is disabled")
					return true
				}
				entries, err := r.transcript.Recent(10)
				if err != nil {
					r.printer.Say("failed to load history: " + err.Error())
					return true
				}
				if len(entries) == 0 {
					r.printer.Say("history is empty")
					return true
				}
				var b strings.Builder
				for _, e := range entries {
					fmt.Fprintf(&b, "[%s] you: %s\n", e.Status, truncate(e.Prompt, 60))
					if e.Reply != "" {
						fmt.Fprintf(&b, "          quill: %s\n", truncate(e.Reply, 60))
					}
				}
				r.printer.Say(strings.TrimRight(b.String(), "\n"))
				return true
			},
		},
		"exit": {
			help: "leave the session",
			run:  func(string) bool { return false },
		},
		"quit": {
			help: "leave the session",
			run:  func(string) bool { return false },
		},
	}
}

// Run reads input until /exit, EOF or context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	r.printer.Say("quill " + r.version + " (type /help for commands)")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if !r.handleLine(line) {
				return nil
			}
		}
	}
}

// handleLine processes one input line; false means stop.
func (r *REPL) handleLine(line string) bool {
	text := strings.TrimSpace(line)
	if text == "" {
		return true
	}

	if strings.HasPrefix(text, "/") {
		name, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
		cmd, ok := r.commands[strings.ToLower(name)]
		if !ok {
			r.printer.Say("unknown command /" + name + "; type /help")
			return true
		}
		return cmd.run(strings.TrimSpace(args))
	}

	if _, ok := r.dispatcher.Enqueue(text); !ok {
		r.printer.Say("session is shutting down")
		return false
	}
	return true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

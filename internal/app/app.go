// Package app wires configuration, the agent pipeline, persistence and the
// user-facing surfaces into one explicit object. Nothing here is a
// singleton; main builds an App, runs one mode and tears it down.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/console"
	"github.com/quillhq/quill/internal/instructions"
	"github.com/quillhq/quill/internal/logger"
	"github.com/quillhq/quill/internal/metrics"
	"github.com/quillhq/quill/internal/preflight"
	"github.com/quillhq/quill/pkg/agent"
	"github.com/quillhq/quill/pkg/dispatch"
	"github.com/quillhq/quill/pkg/gateway"
	"github.com/quillhq/quill/pkg/history"
	"github.com/quillhq/quill/pkg/uistream"
)

// App owns the wired session pipeline for one process.
type App struct {
	cfg     *config.Config
	log     *logger.Logger
	version string

	source  *instructions.Source
	watcher *instructions.Watcher

	executor   *agent.Executor
	adapter    *uistream.Adapter
	dispatcher *dispatch.Dispatcher
	store      *history.Store
	gateway    *gateway.Server
	printer    *console.Printer
	preflight  preflight.Result

	handlersDone chan struct{}
}

// New wires every component from cfg. The agent session is not started
// yet; Run* methods start it so startup latency overlaps with the first
// prompt being typed.
func New(cfg *config.Config, log *logger.Logger, version string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics.EnsureRegistered()
	zl := log.GetZerolog()

	source, err := instructions.NewSource(instructions.Config{
		RepoPath: cfg.RepoPath,
		Mode:     cfg.Agent.Mode,
		File:     cfg.Agent.InstructionsFile,
		Logger:   zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build instructions: %w", err)
	}

	profile, err := selectProfile(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := agent.NewBackend(profile, source)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		log:          log,
		version:      version,
		source:       source,
		executor:     agent.NewExecutor(agent.NewSession(backend, zl), zl),
		adapter:      uistream.NewAdapter(256, zl),
		printer:      console.NewPrinter(os.Stdout),
		handlersDone: make(chan struct{}),
	}

	var recorder dispatch.Recorder
	if cfg.History.Enabled && cfg.History.Path != "" {
		store, err := history.NewStore(history.Config{Path: cfg.History.Path, Logger: zl})
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.store = store
		recorder = store
	}

	a.dispatcher, err = dispatch.New(dispatch.Config{
		Executor: a.executor,
		Adapter:  a.adapter,
		Recorder: recorder,
		Logger:   zl,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Gateway.Enabled {
		a.gateway, err = gateway.NewServer(gateway.Config{
			Host:       cfg.Gateway.Host,
			Port:       cfg.Gateway.Port,
			Executor:   a.executor,
			Dispatcher: a.dispatcher,
			Logger:     zl,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build gateway: %w", err)
		}
	}

	a.preflight = preflight.Run(cfg, zl)
	return a, nil
}

// Preflight returns the environment check outcome for this session.
func (a *App) Preflight() preflight.Result {
	return a.preflight
}

// selectProfile picks the highest-priority profile and merges in the
// agent's model settings.
func selectProfile(cfg *config.Config) (agent.Profile, error) {
	if len(cfg.AI.Profiles) == 0 {
		return agent.Profile{}, errors.New("no AI profile configured")
	}
	profiles := append([]config.AIProfile(nil), cfg.AI.Profiles...)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority > profiles[j].Priority
	})
	p := profiles[0]
	return agent.Profile{
		ID:          p.ID,
		Provider:    p.Provider,
		APIKey:      p.APIKey,
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
		MaxTokens:   cfg.Agent.MaxTokens,
	}, nil
}

// start brings the background pieces up: agent init, dispatcher loop,
// instructions watcher, gateway, and the UI event fan-out.
func (a *App) start(ctx context.Context, handlers ...func(uistream.Event)) error {
	a.executor.Start()
	a.dispatcher.Start(ctx)

	if w, err := instructions.NewWatcher(a.source, a.log.GetZerolog()); err != nil {
		a.log.Warn().Err(err).Msg("instructions watcher unavailable")
	} else {
		a.watcher = w
	}

	if a.gateway != nil {
		if err := a.gateway.Start(); err != nil {
			return err
		}
		handlers = append(handlers, func(ev uistream.Event) {
			a.gateway.Broadcaster().Broadcast(ev)
		})
	}

	go func() {
		defer close(a.handlersDone)
		for ev := range a.adapter.Events() {
			for _, h := range handlers {
				h(ev)
			}
		}
	}()
	return nil
}

// RunREPL runs the interactive console until the user exits or ctx is
// cancelled.
func (a *App) RunREPL(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.start(ctx, a.printer.Print); err != nil {
		return err
	}

	if !a.preflight.OK {
		for _, reason := range a.preflight.Reasons {
			a.printer.Say("warning: " + reason)
		}
	}

	repl := console.New(console.Config{
		In:         os.Stdin,
		Printer:    a.printer,
		Dispatcher: a.dispatcher,
		Executor:   a.executor,
		Transcript: a.transcript(),
		Version:    a.version,
		Logger:     a.log.GetZerolog(),
	})
	err := repl.Run(ctx)
	cancel()
	a.shutdown()
	return err
}

// RunHeadless executes a single prompt and exits. Preflight failures are
// fatal here, unlike the REPL where they are warnings.
func (a *App) RunHeadless(ctx context.Context, prompt string) error {
	if !a.preflight.OK {
		return fmt.Errorf("preflight checks failed: %v", a.preflight.Reasons)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Headless gets its own tap on the fan-out so the gateway can still
	// observe when enabled. Drops after the run settles are harmless.
	events := make(chan uistream.Event, 256)
	forward := func(ev uistream.Event) {
		select {
		case events <- ev:
		default:
		}
	}
	if err := a.start(ctx, forward); err != nil {
		return err
	}

	err := console.Headless(ctx, a.dispatcher, events, a.printer, prompt)
	cancel()
	a.shutdown()
	return err
}

// Interrupt implements the REPL's Ctrl-C contract: the first interrupt
// cancels the run in flight, an interrupt with nothing running reports
// false so the caller can exit.
func (a *App) Interrupt() bool {
	if a.dispatcher.CancelCurrent() {
		a.printer.Say("cancelling current run (press Ctrl-C again to exit)")
		return true
	}
	return false
}

func (a *App) transcript() console.Transcript {
	if a.store == nil {
		return nil
	}
	return a.store
}

// shutdown tears components down in reverse dependency order.
func (a *App) shutdown() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.gateway.Stop(ctx)
		cancel()
	}

	// The dispatcher loop exits via its context; wait for it so no event
	// is produced after the adapter closes.
	select {
	case <-a.dispatcher.Done():
	case <-time.After(5 * time.Second):
		a.log.Warn().Msg("dispatcher did not stop in time")
	}

	if err := a.executor.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close agent session")
	}
	a.adapter.Close()
	<-a.handlersDone

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close history store")
		}
	}
	a.log.Info().Msg("session closed")
}

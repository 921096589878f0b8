package instructions

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a Source when its instructions file changes on disk.
// Editors tend to emit bursts of events on save, so reloads are debounced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	source   *Source
	logger   zerolog.Logger
	debounce time.Duration
	stopCh   chan struct{}

	mu    sync.Mutex // guards timer, written by run and Stop
	timer *time.Timer
}

// NewWatcher watches the directory containing the source's instructions
// file. Watching the directory instead of the file survives editors that
// replace the file on save.
func NewWatcher(source *Source, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		source:   source,
		logger:   logger.With().Str("component", "instructions").Logger(),
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	if err := fsw.Add(filepath.Dir(source.File())); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Stop stops the watcher. Pending debounced reloads are abandoned.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) run() {
	target := filepath.Clean(w.source.File())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("instructions file changed")
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("instructions watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.source.Reload(); err != nil {
			w.logger.Error().Err(err).Msg("failed to reload instructions")
			return
		}
		w.logger.Info().Msg("instructions reloaded")
	})
}

package instructions

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/rs/zerolog"
)

// DefaultFile is the project instructions file looked up in the repo root.
const DefaultFile = "AGENTS.md"

var basePrompts = map[string]string{
	"default": `You are a coding agent working inside the repository at {{.RepoPath}}.
Make focused changes, explain what you did, and prefer small reviewable steps.
When a task is ambiguous, state your assumption and proceed.`,
	"async": `You are an autonomous coding agent working inside the repository at {{.RepoPath}}.
Work through the task end to end without waiting for confirmation.
Report blockers and the final outcome when you finish.`,
	"plan": `You are a planning assistant for the repository at {{.RepoPath}}.
Produce a concrete step-by-step plan. Do not modify any files.`,
}

// Config controls how the system prompt is composed.
type Config struct {
	RepoPath string
	Mode     string // default, async or plan
	File     string // instructions file path; defaults to <RepoPath>/AGENTS.md
	Logger   zerolog.Logger
}

// Source composes the system prompt and serves the latest version to the
// backend. Reload swaps the project instructions atomically; a run that
// already started keeps the text it was given.
type Source struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.RWMutex
	current string
}

// NewSource builds the initial prompt and returns a reloadable source.
func NewSource(cfg Config) (*Source, error) {
	if cfg.RepoPath == "" {
		return nil, errors.New("instructions: repo path is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = "default"
	}
	if _, ok := basePrompts[cfg.Mode]; !ok {
		return nil, errors.New("instructions: unknown mode " + cfg.Mode)
	}
	if cfg.File == "" {
		cfg.File = filepath.Join(cfg.RepoPath, DefaultFile)
	}

	s := &Source{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "instructions").Logger(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Instructions returns the current system prompt.
func (s *Source) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// File returns the path of the watched instructions file.
func (s *Source) File() string {
	return s.cfg.File
}

// Reload recomposes the prompt from the base template and the instructions
// file. A missing file is not an error; the base prompt stands alone.
func (s *Source) Reload() error {
	tmpl, err := template.New("prompt").Parse(basePrompts[s.cfg.Mode])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ RepoPath string }{RepoPath: s.cfg.RepoPath}); err != nil {
		return err
	}

	project, err := os.ReadFile(s.cfg.File)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No project file; base prompt only.
	case err != nil:
		return err
	default:
		text := strings.TrimSpace(string(project))
		if text != "" {
			buf.WriteString("\n\n# Project instructions\n\n")
			buf.WriteString(text)
		}
	}

	s.mu.Lock()
	s.current = buf.String()
	s.mu.Unlock()

	s.logger.Debug().
		Str("mode", s.cfg.Mode).
		Int("bytes", buf.Len()).
		Msg("system prompt composed")
	return nil
}

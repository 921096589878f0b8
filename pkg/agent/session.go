package agent

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Session owns the single live agent connection. It guards the acquire/release
// lifecycle so release is exactly-once and a no-op if acquisition never
// happened.
type Session struct {
	backend Backend
	logger  zerolog.Logger

	mu      sync.Mutex
	entered bool
	closed  bool
}

// NewSession creates a session over the given backend.
func NewSession(backend Backend, logger zerolog.Logger) *Session {
	return &Session{
		backend: backend,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Acquire enters the session. It may only succeed once.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.entered {
		s.mu.Unlock()
		return ErrSessionEntered
	}
	s.mu.Unlock()

	if err := s.backend.StartSession(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.entered = true
	s.mu.Unlock()

	s.logger.Debug().Msg("Session acquired")
	return nil
}

// Run issues a prompt against the entered session.
func (s *Session) Run(ctx context.Context, runID, prompt string) (<-chan Event, error) {
	s.mu.Lock()
	entered, closed := s.entered, s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionClosed
	}
	if !entered {
		return nil, ErrSessionNotEntered
	}

	return s.backend.Run(ctx, runID, prompt)
}

// Entered reports whether acquisition succeeded.
func (s *Session) Entered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entered
}

// Release closes the session. Safe to call on every exit path: it is
// exactly-once and a no-op when the session was never entered.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entered := s.entered
	s.mu.Unlock()

	if !entered {
		s.logger.Debug().Msg("Session released without ever being entered")
		return nil
	}

	s.logger.Debug().Msg("Releasing session")
	return s.backend.CloseSession()
}

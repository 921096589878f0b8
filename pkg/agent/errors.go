package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrRunActive is returned by Run when another run is already in flight.
	ErrRunActive = errors.New("a run is already in flight")

	// ErrSessionClosed is returned when the session has been released.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionNotEntered is returned when a run is attempted before acquisition.
	ErrSessionNotEntered = errors.New("session has not been entered")

	// ErrSessionEntered is returned when acquisition is attempted twice.
	ErrSessionEntered = errors.New("session is already entered")
)

// StartupError is the fatal error class: the session could not be acquired
// and the executor is permanently in the error state.
type StartupError struct {
	Reason error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("agent session failed to start: %v", e.Reason)
}

func (e *StartupError) Unwrap() error {
	return e.Reason
}

// IsStartupError reports whether err is (or wraps) a StartupError.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

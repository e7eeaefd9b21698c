package delivery

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("delivery: validation failed")
	ErrChannelUnavailable = errors.New("delivery: channel unavailable")
	ErrTemplate           = errors.New("delivery: template error")
	ErrTransport          = errors.New("delivery: transport error")
	ErrNotFound           = errors.New("delivery: not found")
	ErrConflict           = errors.New("delivery: concurrent modification")
	ErrInvalidTransition  = errors.New("delivery: invalid status transition")
	ErrLocked             = errors.New("delivery: notification is locked")
)

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From    Status
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("delivery: no transition from %q on %q", e.From, e.Trigger)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

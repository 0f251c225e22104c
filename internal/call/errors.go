package call

import (
	"errors"
	"fmt"
)

var (
	ErrMediaDenied      = errors.New("media capture denied")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotInLobby       = errors.New("a call is already in progress")
	ErrNoMedia          = errors.New("no local media")
	ErrConnectionLost   = errors.New("connection lost")
	ErrUnexpectedSignal = errors.New("unexpected signal kind")
)

// CallError wraps a failure with the operation that produced it.
type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}

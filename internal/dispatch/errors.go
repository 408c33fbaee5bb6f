package dispatch

import (
	"errors"
	"fmt"
)

// ErrChannelNotConnected rejects sends on channels that are not connected.
var ErrChannelNotConnected = errors.New("channel is not connected")

// ValidationError reports bad caller input, detected before any persistence
// or network effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// DispatchError wraps a send attempt that failed after the message row was
// persisted. The row stays behind in failed status with the same reason.
type DispatchError struct {
	MessageID uint
	Reason    string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %s", e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

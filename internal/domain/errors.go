package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates bad configuration or call arguments, such as a
// non-positive sample size, a non-positive timeout, or an EMA factor outside (0,1].
var ErrInvalidArgument = errors.New("invalid argument")

// ErrDispatchAborted indicates that a round could not be started at all,
// for example because no peers were available to query.
var ErrDispatchAborted = errors.New("dispatch aborted")

// ErrInvalidTask indicates that a task is missing its identity, payload, or expected answer.
var ErrInvalidTask = errors.New("invalid task")

// TransportError reports a per-peer delivery failure. It is recoverable: the
// dispatcher records it in-band and the reward engine converts it to a zero score.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

// NewTransportError wraps cause with the given classification.
func NewTransportError(kind ErrorKind, cause error) *TransportError {
	return &TransportError{Kind: kind, Err: cause}
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error (%s)", e.Kind)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *TransportError) Unwrap() error { return e.Err }

// invalidArgf wraps ErrInvalidArgument with a formatted reason.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

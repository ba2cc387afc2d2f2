package activity

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Application error types surfaced to the round workflow. Both are
// non-retryable: a bad argument will not fix itself and an aborted round is
// retried by the cron schedule on its next tick, not by the activity.
const (
	ErrTypeInvalidArgument = "InvalidArgument"
	ErrTypeDispatchAborted = "DispatchAborted"
)

// classify maps domain errors to Temporal application errors. Anything that
// is not a known permanent failure is left retryable under op's name.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDispatchAborted):
		return nonRetryable(ErrTypeDispatchAborted, err, op+": round aborted")
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTask):
		return nonRetryable(ErrTypeInvalidArgument, err, op+": invalid argument")
	default:
		return retryable(op, err, op+" failed")
	}
}

// nonRetryable wraps an error as a Temporal non-retryable application error.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps an error as a Temporal retryable application error.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

// Package transport abstracts how a task reaches a peer.
//
// The round pipeline depends only on Transport. Concrete network clients
// (see grpcpeer) sit at the core of a composable middleware chain that adds
// logging, per-peer rate limiting and per-peer circuit breaking.
package transport

import (
	"context"
	"errors"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Transport sends a task to one peer and returns its raw answer.
// The per-peer timeout arrives as the context deadline. Failures should be
// *domain.TransportError so the dispatcher can classify them.
type Transport interface {
	Send(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error)

// Send implements Transport.
func (f Func) Send(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error) {
	return f(ctx, task, peer)
}

// Middleware wraps a Transport with additional behavior.
type Middleware func(Transport) Transport

// Chain builds a middleware pipeline around a core transport.
// Middleware executes in the order provided with the first one outermost.
func Chain(t Transport, middlewares ...Middleware) Transport {
	for i := len(middlewares) - 1; i >= 0; i-- {
		t = middlewares[i](t)
	}
	return t
}

// Classify maps an error returned by Send to an ErrorKind.
// Deadline expiry is a timeout; parent cancellation is reported as cancelled.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindNone
	}
	var te *domain.TransportError
	if errors.As(err, &te) && te.Kind != domain.ErrorKindNone {
		return te.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return domain.ErrorKindCancelled
	default:
		return domain.ErrorKindUnknown
	}
}

// peerFault reports whether a failure kind reflects on the peer itself, as
// opposed to local throttling or caller cancellation.
func peerFault(kind domain.ErrorKind) bool {
	switch kind {
	case domain.ErrorKindTimeout, domain.ErrorKindConnectionRefused,
		domain.ErrorKindMalformedResponse, domain.ErrorKindUnavailable, domain.ErrorKindUnknown:
		return true
	default:
		return false
	}
}

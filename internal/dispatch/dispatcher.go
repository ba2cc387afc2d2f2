// Package dispatch fans a task out to a set of peers concurrently and
// collects one result per peer, aligned with the order peers were given.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/observability"
	"github.com/ahrav/go-peerscore/internal/transport"
)

// EventPeerFailed is the sink event emitted for every peer without an answer.
const EventPeerFailed = "dispatch.peer_failed"

// Dispatcher sends one task to many peers under a per-peer timeout.
// A slow or failing peer never delays or fails the others.
type Dispatcher struct {
	transport transport.Transport
	sink      observability.Sink
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-round response summaries.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher over t. A nil sink discards warnings.
func New(t transport.Transport, sink observability.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		sink:      observability.OrNop(sink),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends task to every peer concurrently and waits for all of them to
// answer, fail, or exceed timeout. results[i] always describes peers[i].
//
// Per-peer failures, including a malformed peer reference, are reported
// in-band; the only errors returned are ErrInvalidArgument for a bad timeout
// or task and ErrDispatchAborted when there is nothing to dispatch or ctx is
// already done.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	task domain.Task,
	peers []domain.PeerRef,
	timeout time.Duration,
) ([]domain.DispatchResult, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive (got %v)", domain.ErrInvalidArgument, timeout)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("%w: no peers to query", domain.ErrDispatchAborted)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDispatchAborted, err)
	}

	// Pre-allocated so each goroutine owns exactly one slot.
	results := make([]domain.DispatchResult, len(peers))
	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func(idx int, p domain.PeerRef) {
			defer wg.Done()
			if err := p.Validate(); err != nil {
				d.logger.WarnContext(ctx, "peer reference rejected", "peer_id", p.ID, "error", err)
				results[idx] = domain.TransportFailed(p.ID, domain.ErrorKindUnknown, 0)
				return
			}
			results[idx] = d.query(ctx, task, p, timeout)
		}(i, peer)
	}
	wg.Wait()

	failures := 0
	for i, r := range results {
		if !r.Failed() {
			continue
		}
		failures++
		d.sink.Warn(ctx, EventPeerFailed,
			"task_id", task.ID,
			"peer_id", r.PeerID,
			"index", i,
			"outcome", string(r.Outcome),
			"error_kind", string(r.ErrorKind),
			"elapsed_ms", r.Elapsed.Milliseconds())
	}

	d.logger.InfoContext(ctx, "Received responses",
		"task_id", task.ID,
		"peers", len(peers),
		"answered", len(peers)-failures,
		"failed", failures)
	for _, r := range results {
		answer, _ := r.Answer()
		d.logger.DebugContext(ctx, "peer response",
			"peer_id", r.PeerID,
			"outcome", string(r.Outcome),
			"answer", answer)
	}

	return results, nil
}

type reply struct {
	answer string
	err    error
}

// query runs one send under its own deadline. The send itself runs in a
// separate goroutine so a transport that ignores cancellation still resolves
// as a timeout; its late reply lands in the buffered channel and is dropped.
func (d *Dispatcher) query(ctx context.Context, task domain.Task, peer domain.PeerRef, timeout time.Duration) domain.DispatchResult {
	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: domain.NewTransportError(domain.ErrorKindUnknown, fmt.Errorf("transport panic: %v", r))}
			}
		}()
		answer, err := d.transport.Send(pctx, task, peer)
		ch <- reply{answer: answer, err: err}
	}()

	select {
	case r := <-ch:
		return resolve(ctx, pctx, peer, r, time.Since(start))
	case <-pctx.Done():
		// Prefer an answer that raced the deadline.
		select {
		case r := <-ch:
			return resolve(ctx, pctx, peer, r, time.Since(start))
		default:
		}
		return expired(ctx, peer, time.Since(start))
	}
}

func resolve(parent, pctx context.Context, peer domain.PeerRef, r reply, elapsed time.Duration) domain.DispatchResult {
	if r.err == nil {
		return domain.Succeeded(peer.ID, r.answer, elapsed)
	}
	if pctx.Err() != nil {
		return expired(parent, peer, elapsed)
	}
	kind := transport.Classify(r.err)
	if kind == domain.ErrorKindTimeout {
		return domain.TimedOut(peer.ID, elapsed)
	}
	return domain.TransportFailed(peer.ID, kind, elapsed)
}

// expired classifies a send whose context ended: parent cancellation is
// reported as cancelled, the per-peer deadline as a timeout.
func expired(parent context.Context, peer domain.PeerRef, elapsed time.Duration) domain.DispatchResult {
	if parent.Err() != nil {
		return domain.TransportFailed(peer.ID, domain.ErrorKindCancelled, elapsed)
	}
	return domain.TimedOut(peer.ID, elapsed)
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// BreakerState is the state of a peer's circuit.
type BreakerState int32

const (
	// StateClosed allows sends through.
	StateClosed BreakerState = iota
	// StateOpen rejects sends until the open timeout elapses.
	StateOpen
	// StateHalfOpen admits a single probe send.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the per-peer circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive peer faults that open the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of successful probes that close it again.
	SuccessThreshold int
	// OpenTimeout is how long an open circuit rejects sends before probing.
	OpenTimeout time.Duration
}

// Validate ensures thresholds are positive.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: failure threshold must be positive (got %d)", domain.ErrInvalidArgument, c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("%w: success threshold must be positive (got %d)", domain.ErrInvalidArgument, c.SuccessThreshold)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("%w: open timeout must be positive (got %v)", domain.ErrInvalidArgument, c.OpenTimeout)
	}
	return nil
}

// breaker tracks one peer. State transitions use CAS so concurrent sends to
// the same peer never double-count a transition.
type breaker struct {
	peerID string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	state    atomic.Int32
	failures atomic.Int32
	success  atomic.Int32
	openedAt atomic.Int64
	probing  atomic.Bool
}

// allow reports whether a send may proceed and whether it is a half-open probe.
func (b *breaker) allow() (ok, probe bool) {
	for {
		switch BreakerState(b.state.Load()) {
		case StateClosed:
			return true, false
		case StateOpen:
			if b.now().Sub(time.Unix(0, b.openedAt.Load())) < b.cfg.OpenTimeout {
				return false, false
			}
			if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				b.success.Store(0)
				b.probing.Store(false)
				b.logTransition(StateOpen, StateHalfOpen)
			}
		case StateHalfOpen:
			if b.probing.CompareAndSwap(false, true) {
				return true, true
			}
			return false, false
		default:
			return false, false
		}
	}
}

func (b *breaker) recordSuccess(probe bool) {
	if probe {
		defer b.probing.Store(false)
	}
	switch BreakerState(b.state.Load()) {
	case StateClosed:
		b.failures.Store(0)
	case StateHalfOpen:
		if int(b.success.Add(1)) >= b.cfg.SuccessThreshold &&
			b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
			b.failures.Store(0)
			b.success.Store(0)
			b.logTransition(StateHalfOpen, StateClosed)
		}
	}
}

func (b *breaker) recordFailure(probe bool) {
	if probe {
		defer b.probing.Store(false)
	}
	switch from := BreakerState(b.state.Load()); from {
	case StateClosed:
		if int(b.failures.Add(1)) >= b.cfg.FailureThreshold {
			b.trip(from)
		}
	case StateHalfOpen:
		b.trip(from)
	}
}

func (b *breaker) trip(from BreakerState) {
	if b.state.CompareAndSwap(int32(from), int32(StateOpen)) {
		b.openedAt.Store(b.now().UnixNano())
		b.failures.Store(0)
		b.success.Store(0)
		b.logTransition(from, StateOpen)
	}
}

func (b *breaker) logTransition(from, to BreakerState) {
	b.logger.Info("circuit breaker state transition",
		"peer_id", b.peerID,
		"from", from.String(),
		"to", to.String())
}

// BreakerSet holds one circuit per peer identity.
type BreakerSet struct {
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewBreakerSet creates an empty set of per-peer circuits.
// A nil clock defaults to time.Now; a nil logger to slog.Default.
func NewBreakerSet(cfg BreakerConfig, now func() time.Time, logger *slog.Logger) (*BreakerSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerSet{cfg: cfg, now: now, logger: logger, breakers: make(map[string]*breaker)}, nil
}

// State returns the current circuit state for a peer. Unknown peers are closed.
func (s *BreakerSet) State(peerID string) BreakerState {
	s.mu.Lock()
	b, ok := s.breakers[peerID]
	s.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return BreakerState(b.state.Load())
}

func (s *BreakerSet) get(peerID string) *breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[peerID]
	if !ok {
		b = &breaker{peerID: peerID, cfg: s.cfg, now: s.now, logger: s.logger}
		s.breakers[peerID] = b
	}
	return b
}

// Middleware rejects sends to peers whose circuit is open with a
// circuit_open transport error. Only peer faults count toward tripping;
// local rate limiting and caller cancellation leave the circuit untouched.
func (s *BreakerSet) Middleware() Middleware {
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error) {
			b := s.get(peer.ID)
			ok, probe := b.allow()
			if !ok {
				return "", domain.NewTransportError(domain.ErrorKindCircuitOpen,
					fmt.Errorf("circuit for peer %s is %s", peer.ID, BreakerState(b.state.Load())))
			}

			if probe {
				// A panic in the half-open send still reopens the circuit.
				defer func() {
					if r := recover(); r != nil {
						b.recordFailure(true)
						panic(r)
					}
				}()
			}

			answer, err := next.Send(ctx, task, peer)
			switch {
			case err == nil:
				b.recordSuccess(probe)
			case peerFault(Classify(err)):
				b.recordFailure(probe)
			case probe:
				b.probing.Store(false)
			}
			return answer, err
		})
	}
}

package transport

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// RateLimitConfig configures a per-peer token bucket.
type RateLimitConfig struct {
	TokensPerSecond float64
	BurstSize       int
}

// Validate enforces non-negative values and that a zero rate has no burst.
func (c RateLimitConfig) Validate() error {
	if c.TokensPerSecond < 0 {
		return fmt.Errorf("%w: TokensPerSecond cannot be negative (got %f)", domain.ErrInvalidArgument, c.TokensPerSecond)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("%w: BurstSize cannot be negative (got %d)", domain.ErrInvalidArgument, c.BurstSize)
	}
	if c.TokensPerSecond == 0 && c.BurstSize > 0 {
		return fmt.Errorf("%w: BurstSize must be 0 when TokensPerSecond is 0", domain.ErrInvalidArgument)
	}
	return nil
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitMiddleware throttles sends per peer identity. A send that finds
// the peer's bucket empty fails fast with a rate_limited transport error
// rather than waiting, so it never eats into the peer's timeout.
func NewRateLimitMiddleware(cfg RateLimitConfig) (Middleware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rl := &rateLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error) {
			if !rl.limiter(peer.ID).Allow() {
				return "", domain.NewTransportError(domain.ErrorKindRateLimited,
					fmt.Errorf("peer %s exceeded %.2f req/s", peer.ID, rl.cfg.TokensPerSecond))
			}
			return next.Send(ctx, task, peer)
		})
	}, nil
}

func (r *rateLimiter) limiter(peerID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[peerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.cfg.TokensPerSecond), r.cfg.BurstSize)
		r.limiters[peerID] = l
	}
	return l
}

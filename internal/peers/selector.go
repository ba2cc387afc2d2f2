// Package peers chooses which workers are queried each round.
package peers

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Selector samples a bounded, duplicate-free subset of peers, never
// including the coordinating node itself.
type Selector struct {
	self string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector creates a selector that excludes the peer identified by self.
// A nil r uses a randomly seeded PCG source.
func NewSelector(self string, r *rand.Rand) *Selector {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sampling, not crypto
	}
	return &Selector{self: self, rnd: r}
}

// Self returns the identity the selector excludes.
func (s *Selector) Self() string { return s.self }

// Select returns min(k, |candidates|) distinct peers, where candidates are
// the available peers minus self, malformed references and duplicate
// identities.
//
// When k covers every candidate they are all returned, ordered by ID so the
// result is deterministic. Otherwise exactly k peers are drawn uniformly at
// random without replacement.
func (s *Selector) Select(available []domain.PeerRef, k int) ([]domain.PeerRef, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: no peers available", domain.ErrInvalidArgument)
	}

	candidates := s.candidates(available)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no peers available besides self", domain.ErrInvalidArgument)
	}

	if k >= len(candidates) {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
		return candidates, nil
	}

	// Partial Fisher-Yates: the first k slots end up uniformly sampled.
	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rnd.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	s.mu.Unlock()

	return candidates[:k:k], nil
}

// candidates copies available, dropping self, malformed references and
// repeated identities. The first occurrence of a repeated identity wins.
func (s *Selector) candidates(available []domain.PeerRef) []domain.PeerRef {
	out := make([]domain.PeerRef, 0, len(available))
	seen := make(map[string]struct{}, len(available))
	for _, p := range available {
		if p.ID == s.self || p.Validate() != nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Package reputation keeps each peer's exponentially weighted moving average
// of round scores. The store is the only state shared across rounds.
package reputation

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Store is an in-memory, concurrency-safe reputation table.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*domain.ReputationEntry
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{entries: make(map[string]*domain.ReputationEntry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyRewards folds one round of rewards into the table:
//
//	ema = score                          for a peer seen for the first time
//	ema = alpha*score + (1-alpha)*ema    otherwise
//
// The result is clamped to [0, 1]. Non-finite scores are treated as 0 so the
// table never holds NaN. An alpha outside (0, 1] or a record without a peer
// ID rejects the whole batch before any entry changes. The updated entries
// are returned in record order.
func (s *Store) ApplyRewards(records []domain.RewardRecord, alpha float64) ([]domain.ReputationEntry, error) {
	if err := domain.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.PeerID == "" {
			return nil, fmt.Errorf("%w: reward %d has no peer id", domain.ErrInvalidArgument, i)
		}
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]domain.ReputationEntry, 0, len(records))
	for _, r := range records {
		score := r.Score
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		score = domain.Clamp01(score)

		e, ok := s.entries[r.PeerID]
		if !ok {
			e = &domain.ReputationEntry{PeerID: r.PeerID, EMAScore: score}
			s.entries[r.PeerID] = e
		} else {
			e.EMAScore = domain.Clamp01(alpha*score + (1-alpha)*e.EMAScore)
		}
		e.Updates++
		e.UpdatedAt = now
		updated = append(updated, *e)
	}
	return updated, nil
}

// Get returns a peer's current EMA score.
func (s *Store) Get(peerID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[peerID]
	if !ok {
		return 0, false
	}
	return e.EMAScore, true
}

// Entry returns a copy of a peer's full entry.
func (s *Store) Entry(peerID string) (domain.ReputationEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[peerID]
	if !ok {
		return domain.ReputationEntry{}, false
	}
	return *e, true
}

// Len returns the number of tracked peers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns every entry ordered by score descending, then peer ID.
func (s *Store) Snapshot() []domain.ReputationEntry {
	s.mu.RLock()
	out := make([]domain.ReputationEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ReputationEntry) int {
		if c := cmp.Compare(b.EMAScore, a.EMAScore); c != 0 {
			return c
		}
		return cmp.Compare(a.PeerID, b.PeerID)
	})
	return out
}

// Weights returns scores normalized to sum to 1. When every score is zero all
// weights are zero.
func (s *Store) Weights() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, e := range s.entries {
		total += e.EMAScore
	}
	w := make(map[string]float64, len(s.entries))
	for id, e := range s.entries {
		if total > 0 {
			w[id] = e.EMAScore / total
		} else {
			w[id] = 0
		}
	}
	return w
}

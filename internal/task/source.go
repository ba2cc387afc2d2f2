// Package task supplies the challenges sent to peers each round.
// A task pairs an opaque image payload with the text a correct peer should
// recognize in it.
package task

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// Sample is an entry in the task pool.
type Sample struct {
	Filename     string
	ExpectedText string
}

// DefaultSamples returns the pool the validator ships with.
func DefaultSamples() []Sample {
	return []Sample{
		{Filename: "astronaut.jpg", ExpectedText: "ASTRONAUT"},
		{Filename: "memory.jpg", ExpectedText: "MEMORY"},
	}
}

// Source produces a fresh task for each round.
type Source interface {
	NextTask(ctx context.Context) (domain.Task, error)
}

// PoolSource draws uniformly at random from a fixed pool of samples.
type PoolSource struct {
	samples []Sample
	loader  ImageLoader

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a PoolSource.
type Option func(*PoolSource)

// WithRand injects the random source, mainly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *PoolSource) { s.rnd = r }
}

// NewPoolSource validates the pool and returns a source over it.
// Every sample must name a file and carry a non-blank expected text.
func NewPoolSource(samples []Sample, loader ImageLoader, opts ...Option) (*PoolSource, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty task pool", domain.ErrInvalidArgument)
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: nil image loader", domain.ErrInvalidArgument)
	}
	for i, s := range samples {
		if strings.TrimSpace(s.Filename) == "" {
			return nil, fmt.Errorf("%w: sample %d has no filename", domain.ErrInvalidArgument, i)
		}
		if strings.TrimSpace(s.ExpectedText) == "" {
			return nil, fmt.Errorf("%w: sample %q has no expected text", domain.ErrInvalidArgument, s.Filename)
		}
	}

	src := &PoolSource{
		samples: append([]Sample(nil), samples...),
		loader:  loader,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // sampling, not crypto
	}
	for _, opt := range opts {
		opt(src)
	}
	return src, nil
}

// NextTask picks a sample, loads its image, and wraps both in a new task.
func (s *PoolSource) NextTask(ctx context.Context) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	sample := s.samples[s.rnd.IntN(len(s.samples))]
	s.mu.Unlock()

	payload, err := s.loader.Load(sample.Filename)
	if err != nil {
		return domain.Task{}, fmt.Errorf("load %s: %w", sample.Filename, err)
	}
	return domain.NewTask(payload, sample.ExpectedText, sample.Filename)
}

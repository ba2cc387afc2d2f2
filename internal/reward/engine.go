// Package reward turns dispatch results into per-peer scores.
//
// Every result slot produces exactly one reward record at the same index.
// Failed slots score zero. Scores that come out of the policy non-finite or
// outside [0, 1] are sanitized and reported to the warning sink.
package reward

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/observability"
)

// EventSanitized is the sink event emitted once per sanitized record.
const EventSanitized = "reward.sanitized"

// Engine scores dispatch results against a task's expected answer.
type Engine struct {
	policy Policy
	sink   observability.Sink
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy replaces the default ExactMatch policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLogger sets the logger used for the per-round score summary.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a reward engine. A nil sink discards warnings.
func NewEngine(sink observability.Sink, opts ...Option) *Engine {
	e := &Engine{
		policy: ExactMatch,
		sink:   observability.OrNop(sink),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score produces one reward record per result, index-aligned with results.
// The returned records are already sanitized.
func (e *Engine) Score(ctx context.Context, task domain.Task, results []domain.DispatchResult) []domain.RewardRecord {
	records := make([]domain.RewardRecord, len(results))
	for i, r := range results {
		records[i] = domain.RewardRecord{PeerID: r.PeerID, Valid: true}
		answer, ok := r.Answer()
		if !ok || r.Failed() {
			continue
		}
		records[i].Score = e.policy(answer, task.ExpectedAnswer)
	}

	sanitized, n := e.Sanitize(ctx, records)

	e.logger.InfoContext(ctx, "Scored responses",
		"task_id", task.ID,
		"scores", domain.Scores(sanitized),
		"sanitized", n)
	return sanitized
}

// Sanitize returns a copy of records in which every score is finite and in
// [0, 1]. NaN and infinities become 0; finite out-of-range values are clamped.
// Each corrected record is marked invalid and reported once to the sink.
// The second return value counts corrected records. Applying Sanitize to its
// own output changes nothing and emits no warnings.
func (e *Engine) Sanitize(ctx context.Context, records []domain.RewardRecord) ([]domain.RewardRecord, int) {
	out := make([]domain.RewardRecord, len(records))
	copy(out, records)

	n := 0
	for i, r := range out {
		if domain.IsUnitInterval(r.Score) {
			continue
		}
		reason := "out_of_range"
		fixed := domain.Clamp01(r.Score)
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			reason = "non_finite"
			fixed = 0
		}
		e.sink.Warn(ctx, EventSanitized,
			"peer_id", r.PeerID,
			"index", i,
			"reason", reason,
			"original", strconv.FormatFloat(r.Score, 'g', -1, 64),
			"replacement", fixed)
		out[i].Score = fixed
		out[i].Valid = false
		n++
	}
	return out, n
}

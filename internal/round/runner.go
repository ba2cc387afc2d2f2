// Package round runs evaluation rounds end to end:
// sample a task, pick peers, query them, score the answers and fold the
// scores into reputation.
package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/peers"
	"github.com/ahrav/go-peerscore/internal/task"
)

// Selector picks which peers a round queries.
type Selector interface {
	Select(available []domain.PeerRef, k int) ([]domain.PeerRef, error)
}

// Dispatcher queries peers concurrently.
type Dispatcher interface {
	Dispatch(ctx context.Context, t domain.Task, targets []domain.PeerRef, timeout time.Duration) ([]domain.DispatchResult, error)
}

// Scorer converts dispatch results to rewards.
type Scorer interface {
	Score(ctx context.Context, t domain.Task, results []domain.DispatchResult) []domain.RewardRecord
}

// Reputation accumulates rewards across rounds.
type Reputation interface {
	ApplyRewards(records []domain.RewardRecord, alpha float64) ([]domain.ReputationEntry, error)
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Source     task.Source
	Registry   peers.Registry
	Selector   Selector
	Dispatcher Dispatcher
	Scorer     Scorer
	Reputation Reputation
	Logger     *slog.Logger
}

// Runner holds everything one coordinator needs to run rounds. Rounds on the
// same Runner may overlap; the reputation store serializes their writes.
type Runner struct {
	cfg  domain.RoundConfig
	deps Deps
	log  *slog.Logger
}

// NewRunner validates cfg and deps.
func NewRunner(cfg domain.RoundConfig, deps Deps) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: task source is required", domain.ErrInvalidArgument)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: peer registry is required", domain.ErrInvalidArgument)
	case deps.Selector == nil:
		return nil, fmt.Errorf("%w: peer selector is required", domain.ErrInvalidArgument)
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher is required", domain.ErrInvalidArgument)
	case deps.Scorer == nil:
		return nil, fmt.Errorf("%w: scorer is required", domain.ErrInvalidArgument)
	case deps.Reputation == nil:
		return nil, fmt.Errorf("%w: reputation store is required", domain.ErrInvalidArgument)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, deps: deps, log: log}, nil
}

// Config returns the round parameters.
func (r *Runner) Config() domain.RoundConfig { return r.cfg }

// Run executes one round. Per-peer failures never fail the round; they score
// zero. A round that cannot start because no peer is reachable, or whose
// dispatch is interrupted by ctx, returns an error wrapping
// ErrDispatchAborted and leaves reputation untouched.
func (r *Runner) Run(ctx context.Context) (domain.RoundReport, error) {
	started := time.Now()
	report := domain.RoundReport{RoundID: uuid.NewString(), StartedAt: started}
	log := r.log.With("round_id", report.RoundID)

	t, err := r.deps.Source.NextTask(ctx)
	if err != nil {
		return report, fmt.Errorf("sample task: %w", err)
	}
	report.TaskID = t.ID

	available, err := r.deps.Registry.ListAvailablePeers(ctx)
	if err != nil {
		return report, r.abort(ctx, log, fmt.Errorf("list peers: %w", err))
	}
	if len(available) == 0 {
		return report, r.abort(ctx, log, errors.New("registry returned no peers"))
	}

	selected, err := r.deps.Selector.Select(available, r.cfg.SampleSize)
	if err != nil {
		return report, r.abort(ctx, log, fmt.Errorf("select peers: %w", err))
	}
	report.Peers = selected

	log.InfoContext(ctx, "round started",
		"task_id", t.ID,
		"task_source", t.Source,
		"available", len(available),
		"selected", len(selected))

	results, err := r.deps.Dispatcher.Dispatch(ctx, t, selected, r.cfg.Timeout)
	if err != nil {
		if errors.Is(err, domain.ErrDispatchAborted) {
			return report, r.abort(ctx, log, err)
		}
		return report, fmt.Errorf("dispatch: %w", err)
	}
	// Slots cut short by our own cancellation say nothing about the peers.
	if err := ctx.Err(); err != nil {
		return report, r.abort(ctx, log, fmt.Errorf("dispatch interrupted: %w", err))
	}
	report.Results = results
	report.Failures = domain.CountFailures(results)

	rewards := r.deps.Scorer.Score(ctx, t, results)
	if err := domain.CheckAlignment(selected, results, rewards); err != nil {
		return report, fmt.Errorf("round %s: %w", report.RoundID, err)
	}
	report.Rewards = rewards
	report.Sanitized = domain.CountInvalid(rewards)

	if _, err := r.deps.Reputation.ApplyRewards(rewards, r.cfg.Alpha); err != nil {
		return report, fmt.Errorf("apply rewards: %w", err)
	}

	report.Duration = time.Since(started)
	log.InfoContext(ctx, "round completed",
		"task_id", t.ID,
		"peers", len(selected),
		"failures", report.Failures,
		"sanitized", report.Sanitized,
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

func (r *Runner) abort(ctx context.Context, log *slog.Logger, cause error) error {
	err := cause
	if !errors.Is(cause, domain.ErrDispatchAborted) {
		err = fmt.Errorf("%w: %w", domain.ErrDispatchAborted, cause)
	}
	log.WarnContext(ctx, "round aborted", "error", err)
	return err
}

// Loop runs a round immediately and then once per interval until ctx is
// done. Failed rounds are logged and skipped. onReport, when non-nil, sees
// every completed round. Loop returns ctx.Err().
func (r *Runner) Loop(ctx context.Context, interval time.Duration, onReport func(domain.RoundReport)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: loop interval must be positive (got %v)", domain.ErrInvalidArgument, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := r.Run(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.log.ErrorContext(ctx, "round failed", "round_id", report.RoundID, "error", err)
		case err == nil && onReport != nil:
			onReport(report)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

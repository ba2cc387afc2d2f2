// Package activity implements the Temporal activities that make up one
// evaluation round. Each activity validates its input, delegates to the round
// components and reports failures as typed application errors.
package activity

import (
	"context"
	"fmt"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/round"
	pkgactivity "github.com/ahrav/go-peerscore/pkg/activity"
)

// Event types emitted by the round activities.
const (
	EventRoundScored       = "round.scored"
	EventReputationUpdated = "reputation.updated"
)

// RoundScoredEvent is the payload of EventRoundScored.
type RoundScoredEvent struct {
	TaskID    string    `json:"task_id"`
	Peers     []string  `json:"peers"`
	Scores    []float64 `json:"scores"`
	Failures  int       `json:"failures"`
	Sanitized int       `json:"sanitized"`
}

// ReputationUpdatedEvent is the payload of EventReputationUpdated.
type ReputationUpdatedEvent struct {
	Entries []domain.ReputationEntry `json:"entries"`
}

// Activities holds the round components shared by every activity invocation.
type Activities struct {
	base pkgactivity.BaseActivities
	deps round.Deps
}

// NewActivities wires activities to round components. deps.Logger is unused;
// activities log through the Temporal activity logger.
func NewActivities(base pkgactivity.BaseActivities, deps round.Deps) *Activities {
	return &Activities{base: base, deps: deps}
}

// SampleTask draws the round's task.
func (a *Activities) SampleTask(ctx context.Context) (*domain.SampleTaskOutput, error) {
	t, err := a.deps.Source.NextTask(ctx)
	if err != nil {
		return nil, classify("SampleTask", err)
	}
	pkgactivity.SafeLog(ctx, "SampleTask completed", "task_id", t.ID, "task_source", t.Source)
	return &domain.SampleTaskOutput{Task: t}, nil
}

// SelectPeers lists the registry and samples up to SampleSize peers.
// An empty registry, or one holding only this node, aborts the round.
func (a *Activities) SelectPeers(ctx context.Context, input domain.SelectPeersInput) (*domain.SelectPeersOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, classify("SelectPeers", err)
	}

	available, err := a.deps.Registry.ListAvailablePeers(ctx)
	if err != nil {
		return nil, classify("SelectPeers", err)
	}
	if len(available) == 0 {
		return nil, classify("SelectPeers", fmt.Errorf("%w: registry returned no peers", domain.ErrDispatchAborted))
	}

	selected, err := a.deps.Selector.Select(available, input.SampleSize)
	if err != nil {
		return nil, classify("SelectPeers", fmt.Errorf("%w: %w", domain.ErrDispatchAborted, err))
	}

	pkgactivity.SafeLog(ctx, "SelectPeers completed",
		"available", len(available),
		"selected", len(selected))
	return &domain.SelectPeersOutput{Peers: selected, Available: len(available)}, nil
}

// DispatchTask queries the selected peers. Per-peer failures are in-band.
func (a *Activities) DispatchTask(ctx context.Context, input domain.DispatchInput) (*domain.DispatchOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, classify("DispatchTask", err)
	}
	a.base.RecordHeartbeat(ctx, "dispatching", len(input.Peers))

	results, err := a.deps.Dispatcher.Dispatch(ctx, input.Task, input.Peers, input.Timeout)
	if err != nil {
		return nil, classify("DispatchTask", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, classify("DispatchTask", fmt.Errorf("%w: dispatch interrupted: %w", domain.ErrDispatchAborted, err))
	}
	if err := domain.CheckAlignment(input.Peers, results, nil); err != nil {
		return nil, nonRetryable("DispatchTask", err, "misaligned dispatch results")
	}

	pkgactivity.SafeLog(ctx, "DispatchTask completed",
		"task_id", input.Task.ID,
		"peers", len(input.Peers),
		"failures", domain.CountFailures(results))
	return &domain.DispatchOutput{Results: results}, nil
}

// ScoreResults converts dispatch results into sanitized rewards.
func (a *Activities) ScoreResults(ctx context.Context, input domain.ScoreInput) (*domain.ScoreOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, classify("ScoreResults", err)
	}

	rewards := a.deps.Scorer.Score(ctx, input.Task, input.Results)
	if len(rewards) != len(input.Results) {
		return nil, nonRetryable("ScoreResults",
			fmt.Errorf("%w: %d rewards for %d results", domain.ErrInvalidArgument, len(rewards), len(input.Results)),
			"misaligned rewards")
	}

	peerIDs := make([]string, len(input.Results))
	for i, r := range input.Results {
		peerIDs[i] = r.PeerID
	}
	sanitized := domain.CountInvalid(rewards)
	a.base.Emit(ctx, EventRoundScored, RoundScoredEvent{
		TaskID:    input.Task.ID,
		Peers:     peerIDs,
		Scores:    domain.Scores(rewards),
		Failures:  domain.CountFailures(input.Results),
		Sanitized: sanitized,
	})
	if sanitized > 0 {
		pkgactivity.SafeLogWarn(ctx, "ScoreResults sanitized rewards", "sanitized", sanitized)
	}

	pkgactivity.SafeLog(ctx, "ScoreResults completed", "task_id", input.Task.ID, "rewards", len(rewards))
	return &domain.ScoreOutput{Rewards: rewards}, nil
}

// ApplyRewards folds the round's rewards into the reputation store.
func (a *Activities) ApplyRewards(ctx context.Context, input domain.ApplyRewardsInput) (*domain.ApplyRewardsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, classify("ApplyRewards", err)
	}

	entries, err := a.deps.Reputation.ApplyRewards(input.Rewards, input.Alpha)
	if err != nil {
		return nil, classify("ApplyRewards", err)
	}

	a.base.Emit(ctx, EventReputationUpdated, ReputationUpdatedEvent{Entries: entries})
	pkgactivity.SafeLog(ctx, "ApplyRewards completed", "updated", len(entries))
	return &domain.ApplyRewardsOutput{Entries: entries}, nil
}

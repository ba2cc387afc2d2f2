// Package workflow orchestrates evaluation rounds with Temporal.
//
// RoundWorkflow is deterministic control flow only:
// SampleTask → SelectPeers → DispatchTask → ScoreResults → ApplyRewards.
// Randomness, clocks and network I/O live in the activities. In production the
// workflow runs on a cron schedule so each tick is one round.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-peerscore/internal/activity"
	"github.com/ahrav/go-peerscore/internal/domain"
)

// dispatchGrace is added to the per-peer timeout to bound the dispatch activity.
const dispatchGrace = 30 * time.Second

// RoundWorkflow runs one evaluation round. An aborted round (no reachable
// peers) fails with a non-retryable DispatchAborted error; the schedule
// simply tries again on its next tick.
func RoundWorkflow(ctx workflow.Context, in domain.RoundWorkflowInput) (*domain.RoundSummary, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "round.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid round input",
			activity.ErrTypeInvalidArgument,
			err,
		)
	}

	nonRetryable := []string{activity.ErrTypeInvalidArgument, activity.ErrTypeDispatchAborted}
	standard := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: nonRetryable,
		},
	})
	// Re-dispatching would query peers twice and re-applying rewards would
	// double-count them, so those two activities run at most once.
	once := &temporal.RetryPolicy{MaximumAttempts: 1, NonRetryableErrorTypes: nonRetryable}
	dispatchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: in.Round.Timeout + dispatchGrace,
		RetryPolicy:         once,
	})
	applyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         once,
	})

	var a *activity.Activities
	logger := workflow.GetLogger(ctx)

	var sampled domain.SampleTaskOutput
	if err := workflow.ExecuteActivity(standard, a.SampleTask).Get(ctx, &sampled); err != nil {
		return nil, err
	}

	var selected domain.SelectPeersOutput
	if err := workflow.ExecuteActivity(standard, a.SelectPeers,
		domain.SelectPeersInput{SampleSize: in.Round.SampleSize}).Get(ctx, &selected); err != nil {
		logger.Warn("round aborted", "task_id", sampled.Task.ID, "error", err)
		return nil, err
	}

	var dispatched domain.DispatchOutput
	if err := workflow.ExecuteActivity(dispatchCtx, a.DispatchTask, domain.DispatchInput{
		Task:    sampled.Task,
		Peers:   selected.Peers,
		Timeout: in.Round.Timeout,
	}).Get(ctx, &dispatched); err != nil {
		return nil, err
	}

	var scored domain.ScoreOutput
	if err := workflow.ExecuteActivity(standard, a.ScoreResults, domain.ScoreInput{
		Task:    sampled.Task,
		Results: dispatched.Results,
	}).Get(ctx, &scored); err != nil {
		return nil, err
	}

	var applied domain.ApplyRewardsOutput
	if err := workflow.ExecuteActivity(applyCtx, a.ApplyRewards, domain.ApplyRewardsInput{
		Rewards: scored.Rewards,
		Alpha:   in.Round.Alpha,
	}).Get(ctx, &applied); err != nil {
		return nil, err
	}

	summary := &domain.RoundSummary{
		RoundID:   workflow.GetInfo(ctx).WorkflowExecution.RunID,
		TaskID:    sampled.Task.ID,
		Peers:     domain.PeerIDs(selected.Peers),
		Scores:    domain.Scores(scored.Rewards),
		Failures:  domain.CountFailures(dispatched.Results),
		Sanitized: domain.CountInvalid(scored.Rewards),
	}
	logger.Info("round completed",
		"round_id", summary.RoundID,
		"task_id", summary.TaskID,
		"peers", len(summary.Peers),
		"failures", summary.Failures,
		"sanitized", summary.Sanitized)
	return summary, nil
}

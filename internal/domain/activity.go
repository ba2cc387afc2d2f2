package domain

import (
	"fmt"
	"time"
)

// Activity contracts exchanged between the round workflow and its activities.
// Each input validates itself so activities can reject bad payloads as
// non-retryable before doing any work.

// SampleTaskOutput carries the task drawn for the round.
type SampleTaskOutput struct {
	Task Task `json:"task"`
}

// SelectPeersInput asks for up to SampleSize peers from the registry.
type SelectPeersInput struct {
	SampleSize int `json:"sample_size"`
}

// Validate checks the sample size.
func (in SelectPeersInput) Validate() error {
	if in.SampleSize <= 0 {
		return invalidArgf("sample size must be positive, got %d", in.SampleSize)
	}
	return nil
}

// SelectPeersOutput lists the peers chosen for the round in dispatch order.
type SelectPeersOutput struct {
	Peers     []PeerRef `json:"peers"`
	Available int       `json:"available"`
}

// DispatchInput sends a task to peers with a per-peer timeout.
type DispatchInput struct {
	Task    Task          `json:"task"`
	Peers   []PeerRef     `json:"peers"`
	Timeout time.Duration `json:"timeout"`
}

// Validate checks the task, peer list and timeout.
func (in DispatchInput) Validate() error {
	if err := in.Task.Validate(); err != nil {
		return err
	}
	if in.Timeout <= 0 {
		return invalidArgf("peer timeout must be positive, got %s", in.Timeout)
	}
	if len(in.Peers) == 0 {
		return fmt.Errorf("%w: no peers to query", ErrDispatchAborted)
	}
	return nil
}

// DispatchOutput holds one result per peer, index-aligned with the input.
type DispatchOutput struct {
	Results []DispatchResult `json:"results"`
}

// ScoreInput scores dispatch results against the task's expected answer.
type ScoreInput struct {
	Task    Task             `json:"task"`
	Results []DispatchResult `json:"results"`
}

// Validate checks the task and every result variant.
func (in ScoreInput) Validate() error {
	if err := in.Task.Validate(); err != nil {
		return err
	}
	for _, r := range in.Results {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ScoreOutput holds one reward per result, index-aligned with the input.
type ScoreOutput struct {
	Rewards []RewardRecord `json:"rewards"`
}

// ApplyRewardsInput folds a round's rewards into reputation.
type ApplyRewardsInput struct {
	Rewards []RewardRecord `json:"rewards"`
	Alpha   float64        `json:"alpha"`
}

// Validate checks alpha and peer identities.
func (in ApplyRewardsInput) Validate() error {
	if err := ValidateAlpha(in.Alpha); err != nil {
		return err
	}
	for i, r := range in.Rewards {
		if r.PeerID == "" {
			return invalidArgf("reward %d has no peer id", i)
		}
	}
	return nil
}

// ApplyRewardsOutput reports the post-update reputation of each rewarded peer.
type ApplyRewardsOutput struct {
	Entries []ReputationEntry `json:"entries"`
}

// RoundWorkflowInput parameterizes one scheduled round.
type RoundWorkflowInput struct {
	Round RoundConfig `json:"round"`
}

// Validate checks the round parameters.
func (in RoundWorkflowInput) Validate() error { return in.Round.Validate() }

// RoundSummary is the workflow result: a compact view of the round that
// stays small in workflow history.
type RoundSummary struct {
	RoundID   string    `json:"round_id"`
	TaskID    string    `json:"task_id"`
	Peers     []string  `json:"peers"`
	Scores    []float64 `json:"scores"`
	Failures  int       `json:"failures"`
	Sanitized int       `json:"sanitized"`
}

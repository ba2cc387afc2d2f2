package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultSampleSize is the number of peers queried per round.
	DefaultSampleSize = 50
	// DefaultPeerTimeout bounds each peer's answer time.
	DefaultPeerTimeout = 12 * time.Second
	// DefaultAlpha is the EMA weight given to the newest round.
	DefaultAlpha = 0.1
)

// RoundConfig holds the externally supplied round parameters.
type RoundConfig struct {
	// SampleSize is k, the maximum number of peers queried per round.
	SampleSize int `json:"sample_size" mapstructure:"sample_size"`

	// Timeout bounds each individual peer request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Alpha is the EMA factor in (0, 1].
	Alpha float64 `json:"alpha" mapstructure:"alpha"`
}

// DefaultRoundConfig returns the parameters the validator ships with.
func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		SampleSize: DefaultSampleSize,
		Timeout:    DefaultPeerTimeout,
		Alpha:      DefaultAlpha,
	}
}

// Validate rejects out-of-range parameters with ErrInvalidArgument.
func (c RoundConfig) Validate() error {
	if c.SampleSize <= 0 {
		return invalidArgf("sample size must be positive, got %d", c.SampleSize)
	}
	if c.Timeout <= 0 {
		return invalidArgf("peer timeout must be positive, got %s", c.Timeout)
	}
	return ValidateAlpha(c.Alpha)
}

// ValidateAlpha checks the EMA factor lies in (0, 1].
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return invalidArgf("alpha must be in (0,1], got %v", alpha)
	}
	return nil
}

// RoundReport summarizes one completed round.
// Peers, Results and Rewards are index-aligned.
type RoundReport struct {
	RoundID   string           `json:"round_id"`
	TaskID    string           `json:"task_id"`
	Peers     []PeerRef        `json:"peers"`
	Results   []DispatchResult `json:"results"`
	Rewards   []RewardRecord   `json:"rewards"`
	Failures  int              `json:"failures"`
	Sanitized int              `json:"sanitized"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// CheckAlignment verifies that results and rewards line up with the dispatched peers.
func CheckAlignment(peers []PeerRef, results []DispatchResult, rewards []RewardRecord) error {
	if len(results) != len(peers) {
		return fmt.Errorf("%w: %d results for %d peers", ErrInvalidArgument, len(results), len(peers))
	}
	if rewards != nil && len(rewards) != len(peers) {
		return fmt.Errorf("%w: %d rewards for %d peers", ErrInvalidArgument, len(rewards), len(peers))
	}
	for i, p := range peers {
		if results[i].PeerID != p.ID {
			return fmt.Errorf("%w: result %d belongs to %q, expected %q",
				ErrInvalidArgument, i, results[i].PeerID, p.ID)
		}
		if rewards != nil && rewards[i].PeerID != p.ID {
			return fmt.Errorf("%w: reward %d belongs to %q, expected %q",
				ErrInvalidArgument, i, rewards[i].PeerID, p.ID)
		}
	}
	return nil
}

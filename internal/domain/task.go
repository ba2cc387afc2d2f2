// Package domain provides the core types for peer evaluation rounds.
// It defines tasks, peer references, dispatch results, reward records, and
// reputation entries, plus the input and output contracts exchanged between
// the round workflow and its activities.
//
// Round Architecture:
//   - A Task carries an opaque payload and the known-correct answer.
//   - Each dispatched peer yields exactly one DispatchResult, slotted by index.
//   - Each DispatchResult yields exactly one RewardRecord at the same index.
//   - RewardRecords fold into per-peer ReputationEntries via an EMA.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Task is a single evaluation challenge sent to peers during a round.
// Tasks are immutable once created and a fresh one is built for every round.
type Task struct {
	// ID uniquely identifies the task for correlation across logs and events.
	ID string `json:"id" validate:"required,uuid"`

	// Payload is the opaque input handed to peers (an encoded image for
	// recognition rounds). The core never interprets its format.
	Payload []byte `json:"payload"`

	// ExpectedAnswer is the known-correct result. Never empty.
	ExpectedAnswer string `json:"expected_answer" validate:"required"`

	// Source names where the payload came from (e.g. the image filename).
	Source string `json:"source,omitempty"`
}

// NewTask builds a validated task with a fresh UUID.
func NewTask(payload []byte, expected, source string) (Task, error) {
	t := Task{
		ID:             uuid.New().String(),
		Payload:        payload,
		ExpectedAnswer: expected,
		Source:         source,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the task carries an identity and a non-blank expected answer.
func (t Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	if strings.TrimSpace(t.ExpectedAnswer) == "" {
		return fmt.Errorf("%w: expected answer is blank", ErrInvalidTask)
	}
	return nil
}

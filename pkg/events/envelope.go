// Package events provides the event envelope emitted by round activities and
// the sinks that receive it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a domain event with the metadata needed for routing,
// deduplication and correlation with the workflow that produced it.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event, e.g. "round.scored".
	Type string `json:"type"`

	// Source identifies the emitting component, e.g. "round-activities".
	Source string `json:"source"`

	// Version enables schema evolution of the payload.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is derived from the workflow run and event type so that
	// activity retries produce the same key.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkflowID identifies the Temporal workflow that triggered this event.
	WorkflowID string `json:"workflow_id"`

	// RunID identifies the specific workflow execution run.
	RunID string `json:"run_id"`

	// Payload contains the event data as JSON. Schema varies by Type and Version.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps a fresh ID, the current time and a
// deterministic idempotency key for (workflowID, runID, eventType).
func NewEnvelope(eventType, source, workflowID, runID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	key := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s/%s/%s", workflowID, runID, eventType)).String()
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: key,
		WorkflowID:     workflowID,
		RunID:          runID,
		Payload:        raw,
	}, nil
}

// EventSink receives envelopes for downstream consumers.
// Append should be idempotent on IdempotencyKey and return quickly. Callers
// never fail their primary operation because of a sink error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }

// LogSink writes each event as a structured log line.
type LogSink struct{ logger *slog.Logger }

// NewLogSink wraps logger, falling back to slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"event_type", e.Type,
		"event_id", e.ID,
		"source", e.Source,
		"workflow_id", e.WorkflowID,
		"run_id", e.RunID,
		"idempotency_key", e.IdempotencyKey,
		"payload", string(e.Payload))
	return nil
}

// MemorySink keeps events in memory, dropping duplicates by idempotency key.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []Envelope
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (s *MemorySink) Append(_ context.Context, e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[e.IdempotencyKey]; dup {
		return nil
	}
	s.seen[e.IdempotencyKey] = struct{}{}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the stored envelopes in arrival order.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.events))
	copy(out, s.events)
	return out
}

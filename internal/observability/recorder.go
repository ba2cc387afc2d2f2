package observability

import (
	"context"
	"sync"
)

// Warning is a captured Sink call.
type Warning struct {
	Event  string
	Fields map[string]any
}

// Recorder is an in-memory Sink that keeps every warning it receives.
// It is safe for concurrent use and intended for tests and diagnostics.
type Recorder struct {
	mu       sync.Mutex
	warnings []Warning
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Warn implements Sink.
func (r *Recorder) Warn(_ context.Context, event string, fields ...any) {
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if k, ok := fields[i].(string); ok {
			m[k] = fields[i+1]
		}
	}
	r.mu.Lock()
	r.warnings = append(r.warnings, Warning{Event: event, Fields: m})
	r.mu.Unlock()
}

// Warnings returns a copy of everything recorded so far.
func (r *Recorder) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Events returns the recorded warnings whose event name matches.
func (r *Recorder) Events(event string) []Warning {
	var out []Warning
	for _, w := range r.Warnings() {
		if w.Event == event {
			out = append(out, w)
		}
	}
	return out
}

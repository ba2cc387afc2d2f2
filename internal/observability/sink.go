// Package observability provides the warning sink consumed by the round
// pipeline and the process-level logger builders used by the binaries.
//
// The pipeline depends only on Sink, so the dispatcher and reward engine stay
// decoupled from whichever logging backend the binary selects.
package observability

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
)

// Sink receives structured data-quality and delivery warnings.
// Fields are alternating key/value pairs, as with slog.
type Sink interface {
	Warn(ctx context.Context, event string, fields ...any)
}

// SlogSink forwards warnings to a slog.Logger.
type SlogSink struct{ logger *slog.Logger }

// NewSlogSink wraps logger, falling back to slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Warn implements Sink.
func (s *SlogSink) Warn(ctx context.Context, event string, fields ...any) {
	s.logger.WarnContext(ctx, event, fields...)
}

// ZapSink forwards warnings to a zap.Logger.
type ZapSink struct{ logger *zap.SugaredLogger }

// NewZapSink wraps logger, falling back to the global zap logger when nil.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapSink{logger: logger.Sugar()}
}

// Warn implements Sink.
func (s *ZapSink) Warn(_ context.Context, event string, fields ...any) {
	s.logger.Warnw(event, fields...)
}

type nopSink struct{}

func (nopSink) Warn(context.Context, string, ...any) {}

// Nop returns a Sink that discards everything.
func Nop() Sink { return nopSink{} }

// OrNop returns s, or a no-op sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop()
	}
	return s
}

package recognition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ahrav/go-peerscore/internal/transport/wire"
)

// Service exposes a Recognizer as the gRPC recognition handler.
type Service struct {
	recognizer Recognizer
	logger     *slog.Logger
}

// NewService wraps r. A nil logger falls back to slog.Default.
func NewService(r Recognizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{recognizer: r, logger: logger}
}

// Recognize handles one request, mapping failures onto gRPC status codes.
func (s *Service) Recognize(ctx context.Context, req *wire.RecognitionRequest) (*wire.RecognitionResponse, error) {
	if req == nil || len(req.Image) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	start := time.Now()
	text, err := s.recognizer.Recognize(ctx, req.Image)
	if err != nil {
		s.logger.WarnContext(ctx, "recognition failed",
			"image_bytes", len(req.Image),
			"error", err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, ErrUnrecognized):
			return nil, status.Error(codes.NotFound, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	s.logger.DebugContext(ctx, "recognized image",
		"image_bytes", len(req.Image),
		"text", text,
		"elapsed_ms", time.Since(start).Milliseconds())
	return &wire.RecognitionResponse{RecognizedText: text}, nil
}

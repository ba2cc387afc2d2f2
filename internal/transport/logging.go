package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// NewLoggingMiddleware records every send with its peer, latency and outcome.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Transport) Transport {
		return Func(func(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error) {
			logger.DebugContext(ctx, "sending task to peer",
				"task_id", task.ID,
				"peer_id", peer.ID,
				"address", peer.Address,
				"payload_bytes", len(task.Payload))

			start := time.Now()
			answer, err := next.Send(ctx, task, peer)
			elapsed := time.Since(start)

			if err != nil {
				logger.DebugContext(ctx, "peer send failed",
					"task_id", task.ID,
					"peer_id", peer.ID,
					"error_kind", Classify(err),
					"elapsed_ms", elapsed.Milliseconds(),
					"error", err)
				return "", err
			}
			logger.DebugContext(ctx, "peer answered",
				"task_id", task.ID,
				"peer_id", peer.ID,
				"elapsed_ms", elapsed.Milliseconds(),
				"answer_len", len(answer))
			return answer, nil
		})
	}
}

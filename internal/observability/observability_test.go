package observability

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-peerscore/internal/config"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Warn(ctx, "reward.sanitized", "peer_id", "p1", "reason", "non_finite")
		}()
	}
	wg.Wait()
	r.Warn(ctx, "dispatch.peer_failed", "peer_id", "p2", 42, "dropped")

	assert.Len(t, r.Warnings(), 11)
	assert.Len(t, r.Events("reward.sanitized"), 10)

	failed := r.Events("dispatch.peer_failed")
	require.Len(t, failed, 1)
	assert.Equal(t, map[string]any{"peer_id": "p2"}, failed[0].Fields)
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop(), OrNop(nil))

	r := NewRecorder()
	assert.Same(t, r, OrNop(r))
	assert.NotPanics(t, func() { Nop().Warn(context.Background(), "ignored") })
}

func logConfig(t *testing.T, backend string) (config.LogConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peerscore.log")
	return config.LogConfig{
		Backend: backend,
		Level:   "warn",
		Format:  "json",
		Outputs: []string{path},
	}, path
}

func TestSetup_Slog(t *testing.T) {
	c, path := logConfig(t, "slog")
	logger, sink, flush, err := Setup(c)
	require.NoError(t, err)
	defer flush()

	logger.Info("filtered by level")
	sink.Warn(context.Background(), "reward.sanitized", "peer_id", "p1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"reward.sanitized"`)
	assert.Contains(t, string(data), `"peer_id":"p1"`)
	assert.NotContains(t, string(data), "filtered by level")
}

func TestSetup_Zap(t *testing.T) {
	c, path := logConfig(t, "zap")
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	_, sink, flush, err := Setup(c)
	require.NoError(t, err)
	assert.IsType(t, &ZapSink{}, sink)

	sink.Warn(context.Background(), "dispatch.peer_failed", "peer_id", "p9")
	flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dispatch.peer_failed")
	assert.Contains(t, string(data), `"peer_id":"p9"`)
}

func TestLevels(t *testing.T) {
	tests := []struct {
		in   string
		slog slog.Level
		zap  zapcore.Level
	}{
		{"debug", slog.LevelDebug, zap.DebugLevel},
		{"INFO", slog.LevelInfo, zap.InfoLevel},
		{"warning", slog.LevelWarn, zap.WarnLevel},
		{"error", slog.LevelError, zap.ErrorLevel},
		{"bogus", slog.LevelInfo, zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.slog, slogLevel(tt.in))
			assert.Equal(t, tt.zap, zapLevel(tt.in))
		})
	}
}

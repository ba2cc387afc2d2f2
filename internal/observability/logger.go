package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ahrav/go-peerscore/internal/config"
)

// SetupZapLogger builds a zap.Logger from the provided configuration, sets it
// as the global logger, and redirects the stdlib log package. The caller
// should defer logger.Sync().
func SetupZapLogger(c config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	level.SetLevel(zapLevel(c.Level))

	encCfg := zap.NewProductionEncoderConfig()
	if c.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	var encoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := make([]zapcore.Core, 0, len(c.Outputs))
	for _, out := range c.Outputs {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(openOutput(out, c)), level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	_, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
	return logger, nil
}

// NewSlogLogger builds a slog.Logger writing to the configured outputs.
func NewSlogLogger(c config.LogConfig) *slog.Logger {
	writers := make([]io.Writer, 0, len(c.Outputs))
	for _, out := range c.Outputs {
		writers = append(writers, openOutput(out, c))
	}
	w := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{Level: slogLevel(c.Level), AddSource: c.Development}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup builds the process logger and warning sink for the configured
// backend. With the zap backend, warnings go through zap while the returned
// slog.Logger shares the same outputs. The returned func flushes buffered
// output and must be called before exit.
func Setup(c config.LogConfig) (*slog.Logger, Sink, func(), error) {
	logger := NewSlogLogger(c)
	if !strings.EqualFold(c.Backend, "zap") {
		return logger, NewSlogSink(logger), func() {}, nil
	}
	zl, err := SetupZapLogger(c)
	if err != nil {
		return nil, nil, nil, err
	}
	return logger, NewZapSink(zl), func() { _ = zl.Sync() }, nil
}

// openOutput resolves stdout, stderr, or a file path (rotated when enabled).
func openOutput(out string, c config.LogConfig) io.Writer {
	switch strings.ToLower(out) {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	if c.Rotation.Enable {
		name := out
		if strings.TrimSpace(c.Rotation.Filename) != "" {
			name = c.Rotation.Filename
		}
		return &lumberjack.Logger{
			Filename:   name,
			MaxSize:    max(c.Rotation.MaxSizeMB, 10),
			MaxBackups: max(c.Rotation.MaxBackups, 1),
			MaxAge:     max(c.Rotation.MaxAgeDays, 7),
			Compress:   c.Rotation.Compress,
		}
	}
	if dir := filepath.Dir(out); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // path comes from operator config
	if err != nil {
		return os.Stderr
	}
	return f
}

func zapLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

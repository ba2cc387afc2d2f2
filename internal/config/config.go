// Package config provides YAML-based configuration loading for the
// coordinator and peer binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ahrav/go-peerscore/internal/domain"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the root application configuration.
type Config struct {
	// NodeID is this node's peer identity; the selector never samples it.
	NodeID string `mapstructure:"node_id" validate:"required"`

	Round     RoundConfig     `mapstructure:"round"`
	Log       LogConfig       `mapstructure:"log"`
	Peers     []PeerConfig    `mapstructure:"peers"      validate:"dive"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Transport TransportConfig `mapstructure:"transport"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
}

// RoundConfig holds the round parameters plus the local scheduling interval.
type RoundConfig struct {
	SampleSize int           `mapstructure:"sample_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Alpha      float64       `mapstructure:"alpha"`
	// Interval spaces rounds when running without Temporal.
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

// Domain converts to the pipeline's round parameters.
func (r RoundConfig) Domain() domain.RoundConfig {
	return domain.RoundConfig{SampleSize: r.SampleSize, Timeout: r.Timeout, Alpha: r.Alpha}
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Backend: slog or zap
	Backend string `mapstructure:"backend" validate:"oneof=slog zap"`
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console (text) or json
	Format string `mapstructure:"format" validate:"oneof=console json"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs" validate:"min=1"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// PeerConfig is a statically known peer.
type PeerConfig struct {
	ID      string `mapstructure:"id"      validate:"required"`
	Address string `mapstructure:"address" validate:"required,hostname_port"`
}

// TasksConfig describes the sample pool.
type TasksConfig struct {
	ImageDir string         `mapstructure:"image_dir" validate:"required"`
	Samples  []SampleConfig `mapstructure:"samples"   validate:"min=1,dive"`
}

// SampleConfig pairs an image file with its expected text.
type SampleConfig struct {
	Filename     string `mapstructure:"filename"      validate:"required"`
	ExpectedText string `mapstructure:"expected_text" validate:"required"`
}

// TransportConfig controls outbound peer calls.
type TransportConfig struct {
	RateLimit       RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	MaxMessageBytes int                  `mapstructure:"max_message_bytes" validate:"gt=0"`
}

// RateLimitConfig is a per-peer token bucket.
type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	TokensPerSecond float64 `mapstructure:"tokens_per_second" validate:"gte=0"`
	BurstSize       int     `mapstructure:"burst_size"        validate:"gte=0"`
}

// CircuitBreakerConfig is a per-peer breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"gte=0"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"      validate:"gte=0"`
}

// TemporalConfig controls the workflow-driven scheduler.
type TemporalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	HostPort     string `mapstructure:"host_port"`
	Namespace    string `mapstructure:"namespace"`
	TaskQueue    string `mapstructure:"task_queue"`
	CronSchedule string `mapstructure:"cron_schedule"`
}

// ServerConfig is used by the peer binary.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	// Answer, when set, is returned for every image.
	Answer string `mapstructure:"answer"`
	// Labels maps hex SHA-256 image digests to recognized text.
	Labels map[string]string `mapstructure:"labels"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		NodeID: "coordinator",
		Round: RoundConfig{
			SampleSize: domain.DefaultSampleSize,
			Timeout:    domain.DefaultPeerTimeout,
			Alpha:      domain.DefaultAlpha,
			Interval:   time.Minute,
		},
		Log: LogConfig{
			Backend: "slog",
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				Filename:   "logs/peerscore.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Tasks: TasksConfig{
			ImageDir: "images",
			Samples: []SampleConfig{
				{Filename: "astronaut.jpg", ExpectedText: "ASTRONAUT"},
				{Filename: "memory.jpg", ExpectedText: "MEMORY"},
			},
		},
		Transport: TransportConfig{
			RateLimit:       RateLimitConfig{TokensPerSecond: 5, BurstSize: 5},
			CircuitBreaker:  CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 1, OpenTimeout: 30 * time.Second},
			MaxMessageBytes: 16 << 20,
		},
		Temporal: TemporalConfig{
			HostPort:     "localhost:7233",
			Namespace:    "default",
			TaskQueue:    "peerscore-rounds",
			CronSchedule: "*/1 * * * *",
		},
		Server: ServerConfig{Listen: ":50051"},
	}
}

// Load reads configuration from path (if non-empty) and applies environment
// overrides. Environment variables use the prefix PEERSCORE and `.` is
// replaced with `_`, e.g. PEERSCORE_ROUND_ALPHA=0.2.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PEERSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("round.sample_size", cfg.Round.SampleSize)
	v.SetDefault("round.timeout", cfg.Round.Timeout)
	v.SetDefault("round.alpha", cfg.Round.Alpha)
	v.SetDefault("round.interval", cfg.Round.Interval)
	v.SetDefault("log.backend", cfg.Log.Backend)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("tasks.image_dir", cfg.Tasks.ImageDir)
	v.SetDefault("tasks.samples", sampleDefaults(cfg.Tasks.Samples))
	v.SetDefault("transport.rate_limit.enabled", cfg.Transport.RateLimit.Enabled)
	v.SetDefault("transport.rate_limit.tokens_per_second", cfg.Transport.RateLimit.TokensPerSecond)
	v.SetDefault("transport.rate_limit.burst_size", cfg.Transport.RateLimit.BurstSize)
	v.SetDefault("transport.circuit_breaker.enabled", cfg.Transport.CircuitBreaker.Enabled)
	v.SetDefault("transport.circuit_breaker.failure_threshold", cfg.Transport.CircuitBreaker.FailureThreshold)
	v.SetDefault("transport.circuit_breaker.success_threshold", cfg.Transport.CircuitBreaker.SuccessThreshold)
	v.SetDefault("transport.circuit_breaker.open_timeout", cfg.Transport.CircuitBreaker.OpenTimeout)
	v.SetDefault("transport.max_message_bytes", cfg.Transport.MaxMessageBytes)
	v.SetDefault("temporal.enabled", cfg.Temporal.Enabled)
	v.SetDefault("temporal.host_port", cfg.Temporal.HostPort)
	v.SetDefault("temporal.namespace", cfg.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", cfg.Temporal.TaskQueue)
	v.SetDefault("temporal.cron_schedule", cfg.Temporal.CronSchedule)
	v.SetDefault("server.listen", cfg.Server.Listen)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("peerscore")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and the round parameters.
// Round parameter violations wrap domain.ErrInvalidArgument.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	if err := c.Round.Domain().Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Peers))
	for _, p := range c.Peers {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate peer id %q", domain.ErrInvalidArgument, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// PeerRefs converts the configured peers to domain references.
func (c *Config) PeerRefs() []domain.PeerRef {
	out := make([]domain.PeerRef, len(c.Peers))
	for i, p := range c.Peers {
		out[i] = domain.PeerRef{ID: p.ID, Address: p.Address}
	}
	return out
}

func sampleDefaults(samples []SampleConfig) []map[string]any {
	out := make([]map[string]any, len(samples))
	for i, s := range samples {
		out[i] = map[string]any{"filename": s.Filename, "expected_text": s.ExpectedText}
	}
	return out
}

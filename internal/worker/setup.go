package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-peerscore/internal/activity"
	"github.com/ahrav/go-peerscore/internal/config"
	"github.com/ahrav/go-peerscore/internal/dispatch"
	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/observability"
	"github.com/ahrav/go-peerscore/internal/peers"
	"github.com/ahrav/go-peerscore/internal/reputation"
	"github.com/ahrav/go-peerscore/internal/reward"
	"github.com/ahrav/go-peerscore/internal/round"
	"github.com/ahrav/go-peerscore/internal/task"
	"github.com/ahrav/go-peerscore/internal/transport"
	"github.com/ahrav/go-peerscore/internal/transport/grpcpeer"
	"github.com/ahrav/go-peerscore/internal/transport/wire"
	"github.com/ahrav/go-peerscore/internal/workflow"
	pkgactivity "github.com/ahrav/go-peerscore/pkg/activity"
	"github.com/ahrav/go-peerscore/pkg/events"
)

// CronWorkflowID identifies the scheduled round workflow.
const CronWorkflowID = "peerscore-round-cron"

// Components are the live round collaborators built from configuration.
type Components struct {
	Deps     round.Deps
	Registry *peers.StaticRegistry
	Store    *reputation.Store
	Breakers *transport.BreakerSet

	client *grpcpeer.Client
}

// Close releases network resources.
func (c *Components) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

type buildOptions struct {
	core transport.Transport
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithTransport replaces the gRPC client at the core of the transport chain.
func WithTransport(t transport.Transport) BuildOption {
	return func(o *buildOptions) { o.core = t }
}

// Build wires task source, registry, selector, dispatcher, reward engine and
// reputation store from cfg.
func Build(cfg *config.Config, logger *slog.Logger, sink observability.Sink, opts ...BuildOption) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	samples := make([]task.Sample, len(cfg.Tasks.Samples))
	for i, s := range cfg.Tasks.Samples {
		samples[i] = task.Sample{Filename: s.Filename, ExpectedText: s.ExpectedText}
	}
	source, err := task.NewPoolSource(samples, task.DirLoader{Dir: cfg.Tasks.ImageDir})
	if err != nil {
		return nil, fmt.Errorf("task source: %w", err)
	}

	comps := &Components{
		Registry: peers.NewStaticRegistry(cfg.PeerRefs()...),
		Store:    reputation.NewStore(),
	}

	core := o.core
	if core == nil {
		codec, err := wire.NewCodec(cfg.Transport.MaxMessageBytes)
		if err != nil {
			return nil, fmt.Errorf("wire codec: %w", err)
		}
		comps.client = grpcpeer.NewClient(codec, grpcpeer.WithMaxMessageBytes(cfg.Transport.MaxMessageBytes))
		core = comps.client
	}

	tr, breakers, err := InitializeTransport(core, cfg.Transport, logger)
	if err != nil {
		return nil, errors.Join(err, comps.Close())
	}
	comps.Breakers = breakers

	comps.Deps = round.Deps{
		Source:     source,
		Registry:   comps.Registry,
		Selector:   peers.NewSelector(cfg.NodeID, nil),
		Dispatcher: dispatch.New(tr, sink, dispatch.WithLogger(logger)),
		Scorer:     reward.NewEngine(sink, reward.WithLogger(logger)),
		Reputation: comps.Store,
		Logger:     logger,
	}
	return comps, nil
}

// InitializeTransport wraps core with the configured middleware pipeline:
// logging, then per-peer circuit breaking, then per-peer rate limiting.
// The returned BreakerSet is nil when circuit breaking is disabled.
func InitializeTransport(core transport.Transport, cfg config.TransportConfig, logger *slog.Logger) (transport.Transport, *transport.BreakerSet, error) {
	middlewares := []transport.Middleware{transport.NewLoggingMiddleware(logger)}

	var breakers *transport.BreakerSet
	if cfg.CircuitBreaker.Enabled {
		var err error
		breakers, err = transport.NewBreakerSet(transport.BreakerConfig{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
			OpenTimeout:      cfg.CircuitBreaker.OpenTimeout,
		}, nil, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("circuit breaker: %w", err)
		}
		middlewares = append(middlewares, breakers.Middleware())
	}

	if cfg.RateLimit.Enabled {
		rl, err := transport.NewRateLimitMiddleware(transport.RateLimitConfig{
			TokensPerSecond: cfg.RateLimit.TokensPerSecond,
			BurstSize:       cfg.RateLimit.BurstSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit: %w", err)
		}
		middlewares = append(middlewares, rl)
	}

	return transport.Chain(core, middlewares...), breakers, nil
}

// NewActivities builds round activities that emit events to sink.
func NewActivities(comps *Components, sink events.EventSink) *activity.Activities {
	return activity.NewActivities(pkgactivity.NewBaseActivities(sink, "round-activities"), comps.Deps)
}

// NewTemporalWorker creates a worker on the configured task queue with the
// round workflow and activities registered.
func NewTemporalWorker(c client.Client, cfg config.TemporalConfig, acts *activity.Activities) sdkworker.Worker {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterAll(w, acts)
	return w
}

// StartCronRound starts the scheduled round workflow, or returns the handle
// of the one already running.
func StartCronRound(ctx context.Context, c client.Client, cfg config.TemporalConfig, rc domain.RoundConfig) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:           CronWorkflowID,
		TaskQueue:    cfg.TaskQueue,
		CronSchedule: cfg.CronSchedule,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, workflow.RoundWorkflow, domain.RoundWorkflowInput{Round: rc})
	if err != nil {
		return nil, fmt.Errorf("start round workflow: %w", err)
	}
	return run, nil
}

// RunRound executes a single round workflow and waits for its summary.
func RunRound(ctx context.Context, c client.Client, cfg config.TemporalConfig, rc domain.RoundConfig) (*domain.RoundSummary, error) {
	opts := client.StartWorkflowOptions{
		ID:        "peerscore-round-" + uuid.NewString(),
		TaskQueue: cfg.TaskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, workflow.RoundWorkflow, domain.RoundWorkflowInput{Round: rc})
	if err != nil {
		return nil, fmt.Errorf("start round workflow: %w", err)
	}
	var summary domain.RoundSummary
	if err := run.Get(ctx, &summary); err != nil {
		return nil, fmt.Errorf("round workflow %s: %w", run.GetID(), err)
	}
	return &summary, nil
}

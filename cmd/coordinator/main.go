// Command coordinator runs peer-scoring rounds: it samples a task, queries a
// random subset of peers, scores their answers and keeps a moving-average
// reputation per peer.
//
// Rounds run on a local ticker by default. With temporal.enabled set, the
// process hosts a Temporal worker and schedules the round workflow on a cron.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/ahrav/go-peerscore/internal/config"
	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/observability"
	"github.com/ahrav/go-peerscore/internal/reputation"
	"github.com/ahrav/go-peerscore/internal/round"
	"github.com/ahrav/go-peerscore/internal/worker"
	"github.com/ahrav/go-peerscore/pkg/events"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run a single round and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintln(os.Stderr, "coordinator:", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, sink, flush, err := observability.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := worker.Build(cfg, logger, sink)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("closing peer connections", "error", err)
		}
	}()

	logger.Info("coordinator starting",
		"node_id", cfg.NodeID,
		"peers", len(cfg.Peers),
		"sample_size", cfg.Round.SampleSize,
		"timeout", cfg.Round.Timeout,
		"alpha", cfg.Round.Alpha,
		"temporal", cfg.Temporal.Enabled)

	if cfg.Temporal.Enabled {
		return runTemporal(ctx, cfg, comps, logger, once)
	}
	return runLocal(ctx, cfg, comps, logger, once)
}

func runLocal(ctx context.Context, cfg *config.Config, comps *worker.Components, logger *slog.Logger, once bool) error {
	runner, err := round.NewRunner(cfg.Round.Domain(), comps.Deps)
	if err != nil {
		return err
	}

	if once {
		if _, err := runner.Run(ctx); err != nil {
			return err
		}
		logStandings(logger, comps.Store)
		return nil
	}

	err = runner.Loop(ctx, cfg.Round.Interval, func(domain.RoundReport) {
		logStandings(logger, comps.Store)
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("coordinator stopped")
		return nil
	}
	return err
}

func runTemporal(ctx context.Context, cfg *config.Config, comps *worker.Components, logger *slog.Logger, once bool) error {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	acts := worker.NewActivities(comps, events.NewLogSink(logger))
	w := worker.NewTemporalWorker(c, cfg.Temporal, acts)
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer w.Stop()

	if once {
		summary, err := worker.RunRound(ctx, c, cfg.Temporal, cfg.Round.Domain())
		if err != nil {
			return err
		}
		logger.Info("round workflow completed",
			"round_id", summary.RoundID,
			"task_id", summary.TaskID,
			"peers", len(summary.Peers),
			"failures", summary.Failures)
		logStandings(logger, comps.Store)
		return nil
	}

	wr, err := worker.StartCronRound(ctx, c, cfg.Temporal, cfg.Round.Domain())
	if err != nil {
		return err
	}
	logger.Info("round workflow scheduled",
		"workflow_id", wr.GetID(),
		"run_id", wr.GetRunID(),
		"cron", cfg.Temporal.CronSchedule)

	<-ctx.Done()
	logger.Info("coordinator stopped")
	return nil
}

func logStandings(logger *slog.Logger, store *reputation.Store) {
	weights := store.Weights()
	for _, e := range store.Snapshot() {
		logger.Info("reputation",
			"peer_id", e.PeerID,
			"ema_score", e.EMAScore,
			"weight", weights[e.PeerID],
			"updates", e.Updates)
	}
}

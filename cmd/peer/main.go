// Command peer serves the recognition endpoint queried by the coordinator.
//
// The peer answers with server.answer when set. Otherwise it labels images by
// digest, seeded from server.labels and from the configured task images.
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

	"google.golang.org/grpc"

	"github.com/ahrav/go-peerscore/internal/config"
	"github.com/ahrav/go-peerscore/internal/observability"
	"github.com/ahrav/go-peerscore/internal/recognition"
	"github.com/ahrav/go-peerscore/internal/task"
	"github.com/ahrav/go-peerscore/internal/transport/grpcpeer"
	"github.com/ahrav/go-peerscore/internal/transport/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	listen := flag.String("listen", "", "listen address, overrides server.listen")
	flag.Parse()

	if err := run(*configPath, *listen); err != nil {
		fmt.Fprintln(os.Stderr, "peer:", err)
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger, _, flush, err := observability.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()

	rec, err := buildRecognizer(cfg, logger)
	if err != nil {
		return err
	}

	codec, err := wire.NewCodec(cfg.Transport.MaxMessageBytes)
	if err != nil {
		return fmt.Errorf("wire codec: %w", err)
	}
	srv := grpcpeer.NewServer(recognition.NewService(rec, logger), codec, logger,
		grpc.MaxRecvMsgSize(cfg.Transport.MaxMessageBytes))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, err := srv.Start(cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Listen, err)
	}
	logger.Info("peer serving", "node_id", cfg.NodeID, "addr", addr.String())

	<-ctx.Done()
	srv.Stop()
	logger.Info("peer stopped")
	return nil
}

// buildRecognizer picks the answering strategy from cfg.
func buildRecognizer(cfg *config.Config, logger *slog.Logger) (recognition.Recognizer, error) {
	if cfg.Server.Answer != "" {
		return recognition.StaticRecognizer{Text: cfg.Server.Answer}, nil
	}

	r := recognition.NewDigestRecognizer("")
	for digest, text := range cfg.Server.Labels {
		if err := r.LearnDigest(digest, text); err != nil {
			return nil, err
		}
	}

	loader := task.DirLoader{Dir: cfg.Tasks.ImageDir}
	learned := 0
	for _, s := range cfg.Tasks.Samples {
		img, err := loader.Load(s.Filename)
		if errors.Is(err, task.ErrImageNotFound) {
			logger.Warn("sample image missing", "filename", s.Filename, "dir", cfg.Tasks.ImageDir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s.Filename, err)
		}
		r.Learn(img, s.ExpectedText)
		learned++
	}
	logger.Info("recognizer ready", "labels", len(cfg.Server.Labels), "images", learned)
	return r, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dualbot/pkg/api"
	"dualbot/pkg/bus"
	"dualbot/pkg/channel"
	"dualbot/pkg/config"
	"dualbot/pkg/gateway"
	"dualbot/pkg/logger"
	"dualbot/pkg/worker"
)

// pipeline holds everything both run modes share.
type pipeline struct {
	cfg    *config.Config
	log    *slog.Logger
	client *api.Client
	queue  *bus.Queue
	pool   *worker.Pool
}

// loadPipeline loads and validates config, installs the logger and builds
// the queue, worker pool and default handler chain.
func loadPipeline(requireWebhook bool) (*pipeline, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if requireWebhook {
		err = cfg.RequireWebhook()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	client, err := api.NewClient(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("initialize api client: %w", err)
	}

	chain, err := defaultRegistry(cfg, client, appLogger).Build()
	if err != nil {
		return nil, fmt.Errorf("build handler chain: %w", err)
	}

	queue := bus.NewQueue(cfg.Dispatch.QueueSize)
	pool, err := worker.NewPool(queue, chain, cfg.Dispatch.Workers, appLogger)
	if err != nil {
		return nil, fmt.Errorf("initialize worker pool: %w", err)
	}

	return &pipeline{cfg: cfg, log: appLogger, client: client, queue: queue, pool: pool}, nil
}

// service assembles the gateway service for sources.
func (p *pipeline) service(sources []channel.Source) (*gateway.Service, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources are configured")
	}

	return gateway.NewService(p.cfg, p.queue, p.pool, sources, p.log)
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func sourceNames(sources []channel.Source) string {
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		names = append(names, source.Name())
	}

	return strings.Join(names, ",")
}

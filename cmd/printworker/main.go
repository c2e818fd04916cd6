package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/orrn/printworker/internal/api"
	"github.com/orrn/printworker/internal/archive"
	"github.com/orrn/printworker/internal/config"
	"github.com/orrn/printworker/internal/core"
	"github.com/orrn/printworker/internal/db"
	"github.com/orrn/printworker/internal/db/pgstore"
	"github.com/orrn/printworker/internal/db/reststore"
	"github.com/orrn/printworker/internal/events"
	"github.com/orrn/printworker/internal/logging"
	"github.com/orrn/printworker/internal/metrics"
	"github.com/orrn/printworker/internal/render"
	"github.com/orrn/printworker/internal/webhook"
)

type jobStore interface {
	core.JobStore
	core.JobReader
}

func main() {
	configPath := flag.String("config", "printworker.yaml", "path to YAML config file")
	flag.Parse()

	config.LoadEnvFile()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	logging.Install(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("printworker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	transport, err := core.NewTransport(cfg.Printer)
	if err != nil {
		return fmt.Errorf("printer: %w", err)
	}

	renderer := render.NewRenderer(render.Profile{
		ShopName: cfg.Shop.Name,
		Brand:    cfg.Shop.Brand,
		Currency: cfg.Shop.Currency,
		ThankYou: cfg.Shop.ThankYou,
		Width:    cfg.Shop.Width,
	}, nil)

	workerMetrics := metrics.NewMetrics()
	sinks := []core.OutcomeSink{workerMetrics}

	if len(cfg.Webhooks.Endpoints) > 0 {
		sender := webhook.NewWebhookSender(cfg.Webhooks, logger)
		sender.Start()
		defer sender.Stop()
		sinks = append(sinks, sender)
	}

	dispatcher, err := openEvents(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}
	if dispatcher.Len() > 0 {
		defer dispatcher.Close()
		sinks = append(sinks, dispatcher)
	}

	archiver, err := archive.New(cfg.Archive, logger)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if archiver != nil {
		sinks = append(sinks, archiver)
	}

	worker := core.NewWorker(
		core.NewClaimer(store, logger),
		core.NewRunner(renderer, transport, store, logger, sinks...),
		core.WorkerOptions{
			PollInterval: cfg.Queue.PollInterval,
			BatchSize:    cfg.Queue.BatchSize,
			Observer:     workerMetrics,
			Logger:       logger,
		},
	)

	if cfg.Server.Enabled {
		deps := api.Deps{
			Worker:   worker,
			Reader:   store,
			Renderer: renderer,
			Metrics:  workerMetrics,
			Logger:   logger,
		}
		if archiver != nil {
			deps.Documents = archiver
		}
		srv, err := api.NewServer(cfg.Server, deps)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("admin api stopped", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("admin api shutdown", "error", err)
			}
		}()
	}

	logger.Info("printworker starting",
		"store", cfg.Store.Driver,
		"transport", cfg.Printer.Transport,
		"printer", cfg.Printer.Name,
		"sinks", len(sinks),
	)
	return worker.Run(ctx)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (jobStore, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := db.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info("job store opened", "driver", cfg.Driver, "path", cfg.Path)
		return store, func() { store.Close() }, nil
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := pgstore.New(pool, cfg.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		logger.Info("job store opened", "driver", cfg.Driver, "dsn", redactDSN(cfg.DSN), "table", cfg.Table)
		return store, store.Close, nil
	case "postgrest":
		store := reststore.New(cfg.URL, cfg.APIKey, cfg.Table, cfg.Timeout)
		logger.Info("job store opened", "driver", cfg.Driver, "url", cfg.URL, "table", cfg.Table)
		return store, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// openEvents connects the configured brokers. A broker that is configured
// but unreachable at startup is an error.
func openEvents(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (*events.Dispatcher, error) {
	var publishers []events.Publisher

	if cfg.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		publishers = append(publishers, events.NewRedisPublisher(client, cfg.RedisChannel))
	}

	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			for _, pub := range publishers {
				pub.Close()
			}
			return nil, fmt.Errorf("events: %w", err)
		}
		publishers = append(publishers, p)
	}

	return events.NewDispatcher(logger, 0, publishers...), nil
}

func redactDSN(dsn string) string {
	re := regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)
	return re.ReplaceAllString(dsn, `://$1:****@`)
}

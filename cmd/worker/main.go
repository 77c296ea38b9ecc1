// Package main is the entry point for the stockflow background worker:
// it relays the transactional outbox to Kafka and cleans up expired rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockflow/internal/config"
	"stockflow/internal/infrastructure/messaging"
	"stockflow/internal/infrastructure/observability"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: !cfg.App.IsProduction(),
		Service:     cfg.App.Name + "-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatalw("the worker needs the postgres storage driver", "driver", cfg.Storage.Driver)
	}
	if !cfg.Outbox.Enabled {
		log.Info("outbox relay disabled, nothing to do")
		return
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting stockflow worker", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    !cfg.App.IsProduction(),
		ServiceName: cfg.Telemetry.ServiceName + "-worker",
	})
	if err != nil {
		log.Fatalw("failed to set up tracing", "error", err)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
	poolCfg.AppName = cfg.App.Name + "-worker"
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, postgres.DefaultTxOptions())

	publisher := messaging.NewKafkaPublisher(messaging.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("failed to close kafka writer", "error", err)
		}
	}()

	worker := &Worker{
		relay:       postgres.NewOutboxRelay(txManager, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries, publisher),
		idempotency: postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL),
		poll:        cfg.Outbox.PollInterval,
		retention:   cfg.Outbox.Retention,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warnw("failed to flush traces", "error", err)
	}
	log.Info("worker stopped")
}

// Worker relays the outbox on a poll interval and runs hourly cleanup.
type Worker struct {
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	poll        time.Duration
	retention   time.Duration
	log         *logger.Logger
}

func (w *Worker) Run(ctx context.Context) {
	if w.poll <= 0 {
		w.poll = 2 * time.Second
	}
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// processOutbox drains full batches before waiting for the next tick.
func (w *Worker) processOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox relay failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		w.log.Debugw("published outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move exhausted messages to DLQ", "error", err)
	} else if n > 0 {
		w.log.Warnw("moved outbox messages to DLQ", "count", n)
	}

	if w.retention > 0 {
		if n, err := w.relay.PurgePublished(ctx, w.retention); err != nil {
			w.log.Errorw("failed to purge published messages", "error", err)
		} else if n > 0 {
			w.log.Infow("purged published outbox messages", "count", n)
		}
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

// Package main is the entry point for the stockledger background worker.
// It expires reservations per tenant, relays the outbox to Kafka, ingests ERP
// stock levels and purges expired bookkeeping rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockledger/internal/bootstrap"
	"stockledger/internal/config"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/infrastructure/messaging"
	"stockledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := bootstrap.NewLogger(cfg, "worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateStorage(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalw("startup failed", "error", err)
	}
	defer rt.Close(context.Background())

	log.Info("starting stockledger worker")

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(logger.WithLogger(ctx, log.WithComponent(name)))
		}()
	}

	sweeper := NewExpirySweeper(rt.Registry, rt.Services.Reservations, cfg.Worker.ExpiryInterval, cfg.Worker.ExpiryBatch)
	run("reservation-expiry", sweeper.Run)

	run("cleanup", func(ctx context.Context) {
		every(ctx, cfg.Worker.CleanupInterval, func(ctx context.Context) {
			now := time.Now().UTC()
			if n, err := rt.Backend.IdemStore.DeleteExpired(ctx, now); err != nil {
				logger.Error(ctx, "idempotency cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info(ctx, "expired idempotency keys removed", "count", n)
			}
			if n, err := rt.Backend.OutboxStore.PurgePublished(ctx, now.Add(-cfg.Worker.OutboxRetention)); err != nil {
				logger.Error(ctx, "outbox purge failed", "error", err)
			} else if n > 0 {
				logger.Info(ctx, "published outbox messages purged", "count", n)
			}
			rt.Pool.LogStats(ctx)
		})
	})

	if cfg.Kafka.Enabled() {
		kcfg := messaging.Config{
			Brokers:        cfg.Kafka.Brokers,
			MovementsTopic: cfg.Kafka.MovementsTopic,
			LevelsTopic:    cfg.Kafka.LevelsTopic,
			GroupID:        cfg.Kafka.GroupID,
		}

		producer, err := messaging.NewProducer(kcfg, rt.Tracer)
		if err != nil {
			log.Fatalw("kafka producer setup failed", "error", err)
		}
		defer producer.Close()

		relay := outbox.NewRelay(rt.Backend.OutboxStore, messaging.NewOutboxPublisher(producer), rt.Backend.TxManager,
			outbox.RelayConfig{BatchSize: cfg.Worker.OutboxBatch, MaxRetries: cfg.Worker.OutboxMaxRetries})
		run("outbox-relay", func(ctx context.Context) {
			every(ctx, cfg.Worker.OutboxInterval, func(ctx context.Context) {
				// Drain full batches before waiting for the next tick.
				for {
					n, err := relay.ProcessBatch(ctx)
					if err != nil {
						logger.Error(ctx, "outbox relay failed", "error", err)
						return
					}
					if n < cfg.Worker.OutboxBatch || ctx.Err() != nil {
						return
					}
				}
			})
		})

		consumer, err := messaging.NewConsumer(kcfg, rt.Tracer)
		if err != nil {
			log.Fatalw("kafka consumer setup failed", "error", err)
		}
		defer consumer.Close()

		ingest := messaging.NewIngestConsumer(consumer, rt.Services.Ingest)
		run("erp-ingest", func(ctx context.Context) {
			if err := ingest.Run(ctx); err != nil {
				logger.Error(ctx, "erp ingestion stopped", "error", err)
			}
		})
	} else {
		log.Warn("kafka.brokers is empty: outbox relay and ERP ingestion are disabled")
	}

	<-ctx.Done()
	log.Info("shutting down worker...")
	wg.Wait()
	log.Info("worker stopped")
}

// every runs fn immediately and then on each tick until ctx is cancelled.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

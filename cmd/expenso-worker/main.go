package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expenso/internal/archive"
	"expenso/internal/backend"
	"expenso/internal/cli"
	applog "expenso/internal/log"
	"expenso/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting expenso-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	b := result.Backend

	targets, err := factory.CreateSinks(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize sinks", applog.FieldError, err)
		_ = result.Cleanup(context.Background())
		os.Exit(1)
	}
	syncWorker := worker.NewSyncWorker(b.Repository, targets, logger)

	var notifier archive.Notifier
	if cfg.TelegramToken != "" {
		tn, err := archive.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("Failed to initialize Telegram notifier, archives will only be stored", applog.FieldError, err)
		} else {
			notifier = tn
		}
	}
	archiver := archive.NewArchiver(b.Repository, b.Resolver, notifier, logger)
	scheduler, err := archive.NewScheduler(cfg.ArchiveSchedule, archiver, logger)
	if err != nil {
		logger.Error("Failed to schedule monthly archive", applog.FieldError, err)
		_ = result.Cleanup(context.Background())
		os.Exit(1)
	}

	// the consumer stops before the broker connection closes
	consumeCtx, stopConsume := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		stopConsume()
		select {
		case <-consumerDone:
		case <-ctx.Done():
		}
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Archive still running at shutdown", applog.FieldError, err)
		}
		if err := result.Cleanup(ctx); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Performing startup sync")
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	scheduler.Start()

	if b.AMQP != nil {
		go func() {
			defer close(consumerDone)
			if err := b.AMQP.Consume(consumeCtx, syncWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", applog.FieldError, err)
			}
		}()
	} else {
		close(consumerDone)
		logger.Info("AMQP disabled, sinks are only refreshed at startup")
	}

	<-done
	logger.Info("Worker stopped")
}

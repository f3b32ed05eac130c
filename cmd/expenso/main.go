package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenso/internal/auth"
	"expenso/internal/backend"
	"expenso/internal/cli"
	apphttp "expenso/internal/http"
	applog "expenso/internal/log"
	"expenso/internal/services"
	"expenso/internal/users"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	b := result.Backend

	signer, err := auth.NewSigner(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize token signer", applog.FieldError, err)
		os.Exit(1)
	}
	userService := users.NewService(b.Users, logger)
	expenseService := services.NewExpenseService(b.Repository, b.Publisher(), b.Resolver, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses: expenseService,
		Users:    userService,
		Signer:   signer,
		Checks: map[string]apphttp.Pinger{
			"storage": b.Repository,
			"users":   userService,
		},
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		RequestTimeout:     cfg.RequestTimeout,
		TrustedProxies:     cfg.TrustedProxies,
		CORSOrigins:        cfg.CORSOrigins,
		ReportWindowDays:   cfg.ReportWindowDays,
	}, logger)
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := result.Cleanup(ctx); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting expenso server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"user_backend", cfg.UserBackend,
		"amqp_enabled", b.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}

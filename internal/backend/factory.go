// Package backend wires the configured stores, broker, sinks and category
// resolver for the expenso processes.
package backend

import (
	"context"
	"errors"
	"fmt"

	"expenso/internal/amqp"
	applog "expenso/internal/log"
	"expenso/internal/report"
	"expenso/internal/sinks"
	"expenso/internal/sinks/elastic"
	"expenso/internal/sinks/google"
	"expenso/internal/sinks/memory"
	"expenso/internal/storage"
	"expenso/internal/users"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend opens the repository, the user store and, when configured,
// the broker. On failure everything opened so far is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}

	var cleanups []CleanupFunc
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*BackendResult, error) {
		if cerr := cleanup(context.Background()); cerr != nil {
			f.logger.Warn("Cleanup after failed backend creation", applog.FieldError, cerr)
		}
		return nil, err
	}

	resolver, err := f.createResolver(config)
	if err != nil {
		return nil, err
	}

	repo, err := f.createRepository(ctx, config)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func(context.Context) error { return repo.Close() })

	userStore, closeUsers, err := f.createUserStore(ctx, config)
	if err != nil {
		return fail(err)
	}
	if closeUsers != nil {
		cleanups = append(cleanups, closeUsers)
	}

	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
		amqpClient, err = amqp.NewClient(connectCtx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		cancel()
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", applog.FieldError, err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			cleanups = append(cleanups, func(context.Context) error { return amqpClient.Close() })
		}
	}

	f.logger.Info("Initialized backend",
		"data_backend", config.Type,
		"user_backend", config.UserType,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Backend: &Backend{
			Repository: repo,
			Users:      userStore,
			AMQP:       amqpClient,
			Resolver:   resolver,
		},
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createRepository(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
		repo, err := storage.NewPostgresRepository(connectCtx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
		}
		f.logger.Info("Initialized postgres repository")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory repository")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createUserStore(ctx context.Context, config Config) (users.Store, CleanupFunc, error) {
	if config.UserType != MongoUsers {
		return users.NewMemoryStore(), nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	store, err := users.NewMongoStore(connectCtx, config.MongoURI, config.MongoDB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize mongo user store: %w", err)
	}
	f.logger.Info("Initialized mongo user store", "database", config.MongoDB)
	return store, store.Close, nil
}

func (f *DefaultFactory) createResolver(config Config) (report.CategoryResolver, error) {
	var rules []report.Rule
	if config.CategoryRules != "" {
		var err error
		if rules, err = report.ParseRules(config.CategoryRules); err != nil {
			return nil, err
		}
	}
	r, err := report.NewResolver(config.CategoryResolver, rules)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		f.logger.Info("Loaded category rules", "rules", len(rules), "fallback", config.CategoryResolver)
	}
	return r, nil
}

// CreateSinks implements Factory.CreateSinks. A sink that cannot be built
// is an error: the worker would otherwise drift silently.
func (f *DefaultFactory) CreateSinks(ctx context.Context, config Config) ([]sinks.Sink, error) {
	var out []sinks.Sink

	if len(config.ElasticsearchURLs) > 0 {
		es, err := elastic.New(config.ElasticsearchURLs, config.ElasticsearchIndex, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize elasticsearch sink: %w", err)
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure elasticsearch index: %w", err)
		}
		f.logger.Info("Initialized elasticsearch sink", "index", config.ElasticsearchIndex)
		out = append(out, es)
	}

	if config.GoogleSpreadsheetID != "" {
		sh, err := google.New(ctx, google.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsFile: config.GoogleCredentials,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets sink: %w", err)
		}
		f.logger.Info("Initialized Google Sheets sink", "sheet", config.GoogleSheetName)
		out = append(out, sh)
	}

	if len(out) == 0 {
		f.logger.Warn("No sink configured, mirroring into memory")
		out = append(out, memory.New())
	}
	return out, nil
}

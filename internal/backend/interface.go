package backend

import (
	"context"
	"time"

	"expenso/internal/amqp"
	"expenso/internal/report"
	"expenso/internal/services"
	"expenso/internal/sinks"
	"expenso/internal/storage"
	"expenso/internal/users"
)

// BackendType selects where expenses, incomes and archives live.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (t BackendType) String() string { return string(t) }

func (t BackendType) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	}
	return false
}

// UserBackendType selects where accounts live.
type UserBackendType string

const (
	MemoryUsers UserBackendType = "memory"
	MongoUsers  UserBackendType = "mongo"
)

func (t UserBackendType) IsValid() bool {
	return t == MemoryUsers || t == MongoUsers
}

// CleanupFunc releases what CreateBackend opened.
type CleanupFunc func(ctx context.Context) error

// Backend is the set of stores a process runs on.
type Backend struct {
	Repository storage.Repository
	Users      users.Store
	// AMQP is nil when no broker is configured.
	AMQP     *amqp.Client
	Resolver report.CategoryResolver
}

// Publisher returns the broker as a services.Publisher, or a nil interface
// when there is none.
func (b *Backend) Publisher() services.Publisher {
	if b.AMQP == nil {
		return nil
	}
	return b.AMQP
}

// BackendResult contains the backend and its cleanup function.
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends and sinks from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateSinks builds every configured sink. With none configured it
	// returns a single in-memory sink.
	CreateSinks(ctx context.Context, config Config) ([]sinks.Sink, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresURL  string

	UserType UserBackendType
	MongoURI string
	MongoDB  string

	// AMQP is optional; an empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	ElasticsearchURLs   []string
	ElasticsearchIndex  string
	GoogleSpreadsheetID string
	GoogleSheetName     string
	GoogleCredentials   string

	// CategoryResolver is one of report.ResolverNames. CategoryRules, when
	// set, are tried first and fall back to it.
	CategoryResolver string
	CategoryRules    string

	ConnectTimeout time.Duration
}

package backend

import (
	"fmt"
	"time"

	"expenso/internal/config"
)

const defaultConnectTimeout = 10 * time.Second

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	userType := UserBackendType(appConfig.UserBackend)
	if !userType.IsValid() {
		return Config{}, fmt.Errorf("invalid user backend in config: %s", appConfig.UserBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresURL:  appConfig.PostgresURL,

		UserType: userType,
		MongoURI: appConfig.MongoURI,
		MongoDB:  appConfig.MongoDB,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		ElasticsearchURLs:   appConfig.ElasticsearchURLs,
		ElasticsearchIndex:  appConfig.ElasticsearchIndex,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
		GoogleCredentials:   appConfig.GoogleCredentials,

		CategoryResolver: appConfig.CategoryResolver,
		CategoryRules:    appConfig.CategoryRules,

		ConnectTimeout: defaultConnectTimeout,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.UserType.IsValid() {
		return fmt.Errorf("invalid user backend: %s", c.UserType)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres backend")
		}
	}

	if c.UserType == MongoUsers && (c.MongoURI == "" || c.MongoDB == "") {
		return fmt.Errorf("mongo URI and database are required for mongo user backend")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/internal/store/interfaces"
	"github.com/leafsii/post-api/internal/store/memory"
	"github.com/leafsii/post-api/internal/store/mongo"
	"github.com/leafsii/post-api/internal/store/postgres"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrNotConnected       = interfaces.ErrDatabaseNotConnected
)

// NewBackend creates a post store based on configuration
func NewBackend(cfg config.StoreConfig, logger *zap.SugaredLogger) (interfaces.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Infow("Using in-memory post store")
		return memory.New(), nil
	case "mongo":
		logger.Infow("Using MongoDB post store", "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
		return mongo.New(mongo.Config{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			Collection:     cfg.MongoCollection,
			ConnectTimeout: cfg.ConnectTimeout,
		}), nil
	case "postgres":
		logger.Infow("Using PostgreSQL post store")
		return postgres.New(cfg.PostgresDSN, cfg.ConnectTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// ConnectAndMigrate connects to the backend and, when migrate is set and the
// backend manages a schema, applies migrations
func ConnectAndMigrate(ctx context.Context, b interfaces.Backend, migrate bool) error {
	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}

	if !b.IsHealthy(ctx) {
		return fmt.Errorf("store health check failed")
	}

	if m, ok := b.(interfaces.Migrator); ok && migrate {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate store: %w", err)
		}
	}

	return nil
}

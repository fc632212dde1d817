package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
	"github.com/xkilldash9x/tainttrace/internal/observability"
	"github.com/xkilldash9x/tainttrace/internal/store"
)

// scanStore is the part of store.Store used by the commands.
type scanStore interface {
	EnsureSchema(ctx context.Context) error
	PersistScan(ctx context.Context, result *schemas.ScanResult) error
	GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error)
}

// storeProvider creates the scan store. Tests inject a mock instead of a
// live database connection.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources,
	// and an error if the creation fails.
	Create(ctx context.Context, cfg *config.Config) (scanStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL with a pgx pool.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the database, verifies the connection and makes sure
// the schema exists.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (scanStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (TAINTTRACE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := storeService.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

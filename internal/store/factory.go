package store

import (
	"encoding/json"
	"fmt"

	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/store/gormdb"
	"go.uber.org/zap"
)

// ProviderFactory defines the interface for creating store providers
type ProviderFactory interface {
	CreateProvider(configJSON string) (Store, error)
}

// DbProviderFactory builds a Store from a JSON provider config
type DbProviderFactory struct {
	logger *zap.Logger
	clock  clock.Clock
}

func NewDbProviderFactory(logger *zap.Logger, clk clock.Clock) *DbProviderFactory {
	return &DbProviderFactory{
		logger: logger.Named("factory"),
		clock:  clk,
	}
}

func (f *DbProviderFactory) CreateProvider(configJSON string) (Store, error) {
	var config DbProviderConfig
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("failed to parse store configuration JSON: %w", err)
	}

	f.logger.Info("creating store provider", zap.String("db_type", config.DbType.String()))

	if !config.DbType.IsValid() {
		return nil, fmt.Errorf("unsupported database type: %q", config.DbType)
	}

	switch config.DbType {
	case DbTypeSQLite:
		return gormdb.NewSQLiteProvider(config, f.logger, f.clock)
	case DbTypePostgres:
		return gormdb.NewPostgresProvider(config, f.logger, f.clock)
	case DbTypePostgresSQL:
		return NewPostgresProvider(config, f.logger, f.clock)
	case DbTypeMemory:
		f.logger.Info("using in-memory store, data is lost on exit")
		return NewInMemoryProvider(f.clock), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", config.DbType)
	}
}

package store

import "github.com/shaibs3/PriceTracker/internal/store/shared"

// Re-export shared types for convenience
type DbType = shared.DbType
type DbProviderConfig = shared.DbProviderConfig

const (
	DbTypeSQLite      = shared.DbTypeSQLite
	DbTypePostgres    = shared.DbTypePostgres
	DbTypePostgresSQL = shared.DbTypePostgresSQL
	DbTypeMemory      = shared.DbTypeMemory

	DefaultHistoryLimit = shared.DefaultHistoryLimit
)

var ErrProductNotFound = shared.ErrProductNotFound

func HistoryLimit(limit int) int {
	return shared.HistoryLimit(limit)
}

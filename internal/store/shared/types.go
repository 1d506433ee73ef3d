package shared

import "errors"

// DbType selects a store provider
type DbType string

const (
	DbTypeSQLite      DbType = "sqlite"
	DbTypePostgres    DbType = "postgres"
	DbTypePostgresSQL DbType = "postgres_sql"
	DbTypeMemory      DbType = "memory"
)

// DefaultHistoryLimit caps History when the caller passes a non-positive limit.
const DefaultHistoryLimit = 100

// DefaultSQLitePath is used when a sqlite config has no path.
const DefaultSQLitePath = "price_tracking.db"

// ErrProductNotFound is returned when a record references an unknown product.
var ErrProductNotFound = errors.New("product not found")

func (t DbType) String() string {
	return string(t)
}

func (t DbType) IsValid() bool {
	switch t {
	case DbTypeSQLite, DbTypePostgres, DbTypePostgresSQL, DbTypeMemory:
		return true
	}
	return false
}

// DbProviderConfig is the JSON shape of STORE_CONFIG
type DbProviderConfig struct {
	DbType       DbType                 `json:"db_type"`
	ExtraDetails map[string]interface{} `json:"extra_details"`
}

// StringDetail returns a string entry of ExtraDetails, or "" if absent or not a string.
func (c DbProviderConfig) StringDetail(key string) string {
	v, _ := c.ExtraDetails[key].(string)
	return v
}

// HistoryLimit maps a caller supplied limit to the effective one.
func HistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

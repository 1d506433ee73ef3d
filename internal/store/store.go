package store

import (
	"context"

	"github.com/shaibs3/PriceTracker/internal/db"
)

// Store persists tracked products and their price history.
//
// Storage failures are returned to the caller as-is; no provider retries.
type Store interface {
	CreateProduct(ctx context.Context, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error)
	// ListProducts returns every product ordered by ID.
	ListProducts(ctx context.Context) ([]db.Product, error)
	// AppendRecord stores one observation. Either value may be nil.
	AppendRecord(ctx context.Context, productID int64, price *float64, availability *string) error
	// LatestRecord returns nil, nil when the product has no records yet.
	LatestRecord(ctx context.Context, productID int64) (*db.PriceRecord, error)
	// History returns at most limit records, newest first. A non-positive
	// limit means DefaultHistoryLimit.
	History(ctx context.Context, productID int64, limit int) ([]db.PriceRecord, error)
	Close() error
}

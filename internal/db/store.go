package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// InsertProduct inserts a product and returns its new ID
func InsertProduct(ctx context.Context, db *sql.DB, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO products (url, price_selector, availability_selector, alert_threshold)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		url, priceSelector, availabilitySelector, nullFloat(threshold),
	).Scan(&id)
	return id, err
}

// ListProducts returns all products ordered by ID
func ListProducts(ctx context.Context, db *sql.DB) ([]Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, url, price_selector, availability_selector, alert_threshold
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var threshold sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.URL, &p.PriceSelector, &p.AvailabilitySelector, &threshold); err != nil {
			return nil, err
		}
		p.AlertThreshold = floatPtr(threshold)
		products = append(products, p)
	}
	return products, rows.Err()
}

// ProductExists reports whether a product with the given ID is stored
func ProductExists(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// InsertPriceRecord appends an observation for a product
func InsertPriceRecord(ctx context.Context, db *sql.DB, productID int64, price *float64, availability *string, capturedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, availability, captured_at) VALUES ($1, $2, $3, $4)`,
		productID, nullFloat(price), nullString(availability), capturedAt,
	)
	return err
}

// LatestPriceRecord returns the newest record for a product, or nil if there is none
func LatestPriceRecord(ctx context.Context, db *sql.DB, productID int64) (*PriceRecord, error) {
	records, err := PriceHistory(ctx, db, productID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// PriceHistory returns up to limit records for a product, newest first
func PriceHistory(ctx context.Context, db *sql.DB, productID int64, limit int) ([]PriceRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, product_id, price, availability, captured_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PriceRecord
	for rows.Next() {
		var rec PriceRecord
		var price sql.NullFloat64
		var availability sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ProductID, &price, &availability, &rec.CapturedAt); err != nil {
			return nil, err
		}
		rec.Price = floatPtr(price)
		if availability.Valid {
			v := availability.String
			rec.Availability = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

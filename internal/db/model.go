package db

import "time"

// Product is a tracked page and the selectors used to read it
type Product struct {
	ID                   int64    `db:"id" json:"id"`
	URL                  string   `db:"url" json:"url"`
	PriceSelector        string   `db:"price_selector" json:"price_selector"`
	AvailabilitySelector string   `db:"availability_selector" json:"availability_selector"`
	AlertThreshold       *float64 `db:"alert_threshold" json:"alert_threshold,omitempty"`
}

// PriceRecord is one observation of a product. Price and Availability are
// independent and either may be missing.
type PriceRecord struct {
	ID           int64     `db:"id" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	Price        *float64  `db:"price" json:"price,omitempty"`
	Availability *string   `db:"availability" json:"availability,omitempty"`
	CapturedAt   time.Time `db:"captured_at" json:"captured_at"`
}

// Schema is the SQL schema for the products and price_history tables
const Schema = `
CREATE TABLE IF NOT EXISTS products (
    id SERIAL PRIMARY KEY,
    url TEXT NOT NULL,
    price_selector TEXT NOT NULL,
    availability_selector TEXT NOT NULL DEFAULT '',
    alert_threshold DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS price_history (
    id SERIAL PRIMARY KEY,
    product_id INTEGER NOT NULL REFERENCES products(id),
    price DOUBLE PRECISION,
    availability TEXT,
    captured_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_product_captured
    ON price_history (product_id, captured_at DESC);
`

package display

import (
	"fmt"
	"time"

	"github.com/shaibs3/PriceTracker/internal/db"
)

const (
	notAvailable    = "N/A"
	neverUpdated    = "Never"
	timestampLayout = "2006-01-02 15:04:05"
)

// ProductRow is one line of the main view.
type ProductRow struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Price        string `json:"price"`
	Availability string `json:"availability"`
	LastUpdated  string `json:"last_updated"`
}

// HistoryRow is one line of the history view of a product.
type HistoryRow struct {
	Timestamp    string `json:"timestamp"`
	Price        string `json:"price"`
	Availability string `json:"availability"`
}

func newProductRow(p db.Product, latest *db.PriceRecord) ProductRow {
	row := ProductRow{
		ID:           p.ID,
		URL:          p.URL,
		Price:        notAvailable,
		Availability: notAvailable,
		LastUpdated:  neverUpdated,
	}
	if latest != nil {
		row.Price = formatPrice(latest.Price)
		row.Availability = formatAvailability(latest.Availability)
		row.LastUpdated = formatTime(latest.CapturedAt)
	}
	return row
}

func newHistoryRow(rec db.PriceRecord) HistoryRow {
	return HistoryRow{
		Timestamp:    formatTime(rec.CapturedAt),
		Price:        formatPrice(rec.Price),
		Availability: formatAvailability(rec.Availability),
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return notAvailable
	}
	return fmt.Sprintf("$%.2f", *p)
}

func formatAvailability(a *string) string {
	if a == nil {
		return notAvailable
	}
	return *a
}

func formatTime(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

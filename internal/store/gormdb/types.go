package gormdb

import (
	"time"

	"github.com/shaibs3/PriceTracker/internal/db"
)

type GormProduct struct {
	ID                   uint   `gorm:"primaryKey"`
	URL                  string `gorm:"not null"`
	PriceSelector        string `gorm:"not null"`
	AvailabilitySelector string `gorm:"not null;default:''"`
	AlertThreshold       *float64
}

func (GormProduct) TableName() string {
	return "products"
}

func (p GormProduct) toProduct() db.Product {
	return db.Product{
		ID:                   int64(p.ID),
		URL:                  p.URL,
		PriceSelector:        p.PriceSelector,
		AvailabilitySelector: p.AvailabilitySelector,
		AlertThreshold:       p.AlertThreshold,
	}
}

type GormPriceRecord struct {
	ID           uint      `gorm:"primaryKey"`
	ProductID    uint      `gorm:"not null;index:idx_price_history_product_captured,priority:1"`
	Price        *float64
	Availability *string
	CapturedAt   time.Time `gorm:"not null;index:idx_price_history_product_captured,priority:2,sort:desc"`

	// Product only declares the foreign key; it is never loaded or saved.
	Product GormProduct `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (GormPriceRecord) TableName() string {
	return "price_history"
}

func (r GormPriceRecord) toRecord() db.PriceRecord {
	return db.PriceRecord{
		ID:           int64(r.ID),
		ProductID:    int64(r.ProductID),
		Price:        r.Price,
		Availability: r.Availability,
		CapturedAt:   r.CapturedAt,
	}
}

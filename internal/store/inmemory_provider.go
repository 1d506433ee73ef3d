package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/db"
)

type InMemoryProvider struct {
	mu           sync.RWMutex
	clock        clock.Clock
	products     []db.Product
	records      map[int64][]db.PriceRecord
	nextRecordID int64
}

func NewInMemoryProvider(clk clock.Clock) *InMemoryProvider {
	return &InMemoryProvider{
		clock:        clk,
		records:      make(map[int64][]db.PriceRecord),
		nextRecordID: 1,
	}
}

func (m *InMemoryProvider) CreateProduct(ctx context.Context, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := db.Product{
		ID:                   int64(len(m.products) + 1),
		URL:                  url,
		PriceSelector:        priceSelector,
		AvailabilitySelector: availabilitySelector,
		AlertThreshold:       copyFloat(threshold),
	}
	m.products = append(m.products, p)
	return p.ID, nil
}

func (m *InMemoryProvider) ListProducts(ctx context.Context) ([]db.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.products), nil
}

func (m *InMemoryProvider) AppendRecord(ctx context.Context, productID int64, price *float64, availability *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if productID < 1 || productID > int64(len(m.products)) {
		return fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	rec := db.PriceRecord{
		ID:         m.nextRecordID,
		ProductID:  productID,
		Price:      copyFloat(price),
		CapturedAt: m.clock.Now(),
	}
	if availability != nil {
		v := *availability
		rec.Availability = &v
	}
	m.nextRecordID++
	m.records[productID] = append(m.records[productID], rec)
	return nil
}

func (m *InMemoryProvider) LatestRecord(ctx context.Context, productID int64) (*db.PriceRecord, error) {
	history, _ := m.History(ctx, productID, 1)
	if len(history) == 0 {
		return nil, nil
	}
	return &history[0], nil
}

func (m *InMemoryProvider) History(ctx context.Context, productID int64, limit int) ([]db.PriceRecord, error) {
	m.mu.RLock()
	records := slices.Clone(m.records[productID])
	m.mu.RUnlock()

	slices.SortFunc(records, func(a, b db.PriceRecord) int {
		if c := b.CapturedAt.Compare(a.CapturedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit = HistoryLimit(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *InMemoryProvider) Close() error {
	return nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

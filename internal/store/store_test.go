package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type storeCase struct {
	name string
	open func(t *testing.T, clk clock.Clock) Store
}

func storeCases() []storeCase {
	return []storeCase{
		{
			name: "memory",
			open: func(t *testing.T, clk clock.Clock) Store {
				return NewInMemoryProvider(clk)
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T, clk clock.Clock) Store {
				cfg, _ := json.Marshal(DbProviderConfig{
					DbType:       DbTypeSQLite,
					ExtraDetails: map[string]interface{}{"path": filepath.Join(t.TempDir(), "tracker.db")},
				})
				s, err := NewDbProviderFactory(zap.NewNop(), clk).CreateProvider(string(cfg))
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestStore_CreateAndListProducts(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := tc.open(t, clock.NewMockClock(baseTime))

			id1, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", ".stock", ptr(99.5))
			require.NoError(t, err)
			id2, err := s.CreateProduct(ctx, "https://shop.test/b", "#p", "", nil)
			require.NoError(t, err)
			require.Greater(t, id2, id1)

			products, err := s.ListProducts(ctx)
			require.NoError(t, err)
			require.Len(t, products, 2)

			require.Equal(t, id1, products[0].ID)
			require.Equal(t, "https://shop.test/a", products[0].URL)
			require.Equal(t, ".price", products[0].PriceSelector)
			require.Equal(t, ".stock", products[0].AvailabilitySelector)
			require.NotNil(t, products[0].AlertThreshold)
			require.Equal(t, 99.5, *products[0].AlertThreshold)

			require.Equal(t, id2, products[1].ID)
			require.Nil(t, products[1].AlertThreshold)
		})
	}
}

func TestStore_LatestRecord(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clk := clock.NewMockClock(baseTime)
			s := tc.open(t, clk)

			id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", ".stock", nil)
			require.NoError(t, err)

			latest, err := s.LatestRecord(ctx, id)
			require.NoError(t, err)
			require.Nil(t, latest, "no record yet")

			require.NoError(t, s.AppendRecord(ctx, id, ptr(10.0), ptr("In Stock")))
			clk.Advance(time.Minute)
			require.NoError(t, s.AppendRecord(ctx, id, nil, nil))

			latest, err = s.LatestRecord(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, latest)
			require.Nil(t, latest.Price, "price absent is stored as absent")
			require.Nil(t, latest.Availability)
			require.True(t, latest.CapturedAt.Equal(baseTime.Add(time.Minute)))
		})
	}
}

func TestStore_HistoryLimitAndOrder(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clk := clock.NewMockClock(baseTime)
			s := tc.open(t, clk)

			id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
			require.NoError(t, err)
			other, err := s.CreateProduct(ctx, "https://shop.test/b", ".price", "", nil)
			require.NoError(t, err)

			const n = 7
			for i := 0; i < n; i++ {
				require.NoError(t, s.AppendRecord(ctx, id, ptr(float64(i)), nil))
				clk.Advance(time.Second)
			}
			require.NoError(t, s.AppendRecord(ctx, other, ptr(1000.0), nil))

			for _, limit := range []int{1, 3, n, n + 5} {
				history, err := s.History(ctx, id, limit)
				require.NoError(t, err)
				require.Len(t, history, min(n, limit))
				for i, rec := range history {
					require.Equal(t, id, rec.ProductID)
					require.Equal(t, float64(n-1-i), *rec.Price, "newest first")
					if i > 0 {
						require.True(t, rec.CapturedAt.Before(history[i-1].CapturedAt))
					}
				}
			}
		})
	}
}

func TestStore_HistorySameTimestampUsesInsertOrder(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := tc.open(t, clock.NewMockClock(baseTime))

			id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
			require.NoError(t, err)
			require.NoError(t, s.AppendRecord(ctx, id, ptr(1.0), nil))
			require.NoError(t, s.AppendRecord(ctx, id, ptr(2.0), nil))

			history, err := s.History(ctx, id, 0)
			require.NoError(t, err)
			require.Len(t, history, 2)
			require.Equal(t, 2.0, *history[0].Price)
			require.Equal(t, 1.0, *history[1].Price)
		})
	}
}

func TestStore_DefaultHistoryLimit(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryProvider(clock.NewMockClock(baseTime))
	id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
	require.NoError(t, err)
	for i := 0; i < DefaultHistoryLimit+20; i++ {
		require.NoError(t, s.AppendRecord(ctx, id, nil, ptr("Sold out")))
	}

	history, err := s.History(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, history, DefaultHistoryLimit)
}

func TestStore_AppendRecordUnknownProduct(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t, clock.NewMockClock(baseTime))
			err := s.AppendRecord(context.Background(), 42, ptr(1.0), nil)
			require.ErrorIs(t, err, ErrProductNotFound)
		})
	}
}

func TestStore_SQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracker.db")
	cfg, _ := json.Marshal(DbProviderConfig{
		DbType:       DbTypeSQLite,
		ExtraDetails: map[string]interface{}{"path": path},
	})
	factory := NewDbProviderFactory(zap.NewNop(), clock.NewMockClock(baseTime))

	s, err := factory.CreateProvider(string(cfg))
	require.NoError(t, err)
	id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendRecord(ctx, id, ptr(5.0), nil))
	require.NoError(t, s.Close())

	s, err = factory.CreateProvider(string(cfg))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	latest, err := s.LatestRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 5.0, *latest.Price)
}

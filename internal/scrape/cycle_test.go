package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/db"
	"github.com/shaibs3/PriceTracker/internal/extractor"
	"github.com/shaibs3/PriceTracker/internal/fetcher"
	"github.com/shaibs3/PriceTracker/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFetcher serves canned pages by URL; unknown URLs fail.
type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	f.calls = append(f.calls, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fetcher.ErrFetchFailed, url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

func pricePage(price, stock string) string {
	return fmt.Sprintf(`<html><body><span class="price">%s</span><span class="stock">%s</span></body></html>`, price, stock)
}

func ptr[T any](v T) *T { return &v }

type cycleFixture struct {
	store   *store.InMemoryProvider
	fetcher *fakeFetcher
	out     chan Message
	cycle   *Cycle
}

func newCycleFixture(t *testing.T) *cycleFixture {
	s := store.NewInMemoryProvider(clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	f := &fakeFetcher{pages: map[string]string{}}
	out := make(chan Message, 16)
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	return &cycleFixture{
		store:   s,
		fetcher: f,
		out:     out,
		cycle:   NewCycle(s, f, extractor.NewExtractor(zap.NewNop()), out, metrics, zap.NewNop()),
	}
}

func (fx *cycleFixture) addProduct(t *testing.T, url string, threshold *float64) int64 {
	id, err := fx.store.CreateProduct(context.Background(), url, ".price", ".stock", threshold)
	require.NoError(t, err)
	return id
}

func (fx *cycleFixture) history(t *testing.T, id int64) []db.PriceRecord {
	h, err := fx.store.History(context.Background(), id, 0)
	require.NoError(t, err)
	return h
}

func drain(out chan Message) []Message {
	var msgs []Message
	for {
		select {
		case m := <-out:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestCycle_RecordsEveryReachableProduct(t *testing.T) {
	fx := newCycleFixture(t)
	a := fx.addProduct(t, "https://shop.test/a", nil)
	b := fx.addProduct(t, "https://shop.test/b", nil)
	fx.fetcher.pages["https://shop.test/a"] = pricePage("$1,234.56", "  In Stock  ")
	fx.fetcher.pages["https://shop.test/b"] = pricePage("$5.00", "Sold out")

	require.NoError(t, fx.cycle.Run(context.Background()))

	require.Equal(t, []string{"https://shop.test/a", "https://shop.test/b"}, fx.fetcher.calls, "store order")
	ha := fx.history(t, a)
	require.Len(t, ha, 1)
	require.Equal(t, 1234.56, *ha[0].Price)
	require.Equal(t, "In Stock", *ha[0].Availability)
	require.Len(t, fx.history(t, b), 1)
	require.Empty(t, drain(fx.out), "no thresholds, no alerts")
}

func TestCycle_FetchFailureWritesNothing(t *testing.T) {
	fx := newCycleFixture(t)
	down := fx.addProduct(t, "https://down.test", ptr(1000.0))
	up := fx.addProduct(t, "https://shop.test/up", nil)
	fx.fetcher.pages["https://shop.test/up"] = pricePage("$5", "In Stock")

	require.NoError(t, fx.cycle.Run(context.Background()))

	require.Empty(t, fx.history(t, down))
	require.Len(t, fx.history(t, up), 1, "cycle continues past a failed product")
	require.Empty(t, drain(fx.out))
}

func TestCycle_NoMatchStillRecorded(t *testing.T) {
	fx := newCycleFixture(t)
	id := fx.addProduct(t, "https://shop.test/a", ptr(10.0))
	fx.fetcher.pages["https://shop.test/a"] = `<html><body><p>nothing here</p></body></html>`

	require.NoError(t, fx.cycle.Run(context.Background()))

	h := fx.history(t, id)
	require.Len(t, h, 1)
	require.Nil(t, h[0].Price)
	require.Nil(t, h[0].Availability)
	require.Empty(t, drain(fx.out), "absent price never alerts")
}

func TestCycle_AlertOnlyBelowThreshold(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		threshold *float64
		wantAlert bool
	}{
		{"below", "$99.99", ptr(100.0), true},
		{"equal", "$100.00", ptr(100.0), false},
		{"above", "$150", ptr(100.0), false},
		{"no threshold", "$1", nil, false},
		{"no price", "n/a", ptr(100.0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newCycleFixture(t)
			id := fx.addProduct(t, "https://shop.test/item", tt.threshold)
			fx.fetcher.pages["https://shop.test/item"] = pricePage(tt.price, "In Stock")

			require.NoError(t, fx.cycle.Run(context.Background()))

			msgs := drain(fx.out)
			if !tt.wantAlert {
				require.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			require.Equal(t, KindAlert, msgs[0].Kind)
			require.Equal(t, id, msgs[0].ProductID)
			require.Equal(t, 100.0, msgs[0].Threshold)
			require.Equal(t, 99.99, msgs[0].Price)
			require.Equal(t, "Price dropped below 100 for https://shop.test/item", msgs[0].Text)
		})
	}
}

// failingStore fails every AppendRecord.
type failingStore struct {
	*store.InMemoryProvider
	listErr error
}

func (s *failingStore) ListProducts(ctx context.Context) ([]db.Product, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.InMemoryProvider.ListProducts(ctx)
}

func (s *failingStore) AppendRecord(ctx context.Context, productID int64, price *float64, availability *string) error {
	return errors.New("disk full")
}

func TestCycle_StoreFailuresAreCollected(t *testing.T) {
	mem := store.NewInMemoryProvider(clock.NewRealClock())
	for _, u := range []string{"https://shop.test/a", "https://shop.test/b"} {
		_, err := mem.CreateProduct(context.Background(), u, ".price", ".stock", ptr(100.0))
		require.NoError(t, err)
	}
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.test/a": pricePage("$1", ""),
		"https://shop.test/b": pricePage("$2", ""),
	}}
	out := make(chan Message, 4)
	c := NewCycle(&failingStore{InMemoryProvider: mem}, f, extractor.NewExtractor(zap.NewNop()), out, nil, zap.NewNop())

	err := c.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	require.ErrorContains(t, err, "product 1")
	require.ErrorContains(t, err, "product 2")
	require.Len(t, f.calls, 2, "second product still attempted")
	require.Empty(t, drain(out), "no alert without a stored record")
}

func TestCycle_ListFailureAborts(t *testing.T) {
	mem := store.NewInMemoryProvider(clock.NewRealClock())
	f := &fakeFetcher{}
	c := NewCycle(&failingStore{InMemoryProvider: mem, listErr: errors.New("db locked")}, f, extractor.NewExtractor(zap.NewNop()), make(chan Message, 1), nil, zap.NewNop())

	err := c.Run(context.Background())
	require.ErrorContains(t, err, "db locked")
	require.Empty(t, f.calls)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "refresh", KindRefresh.String())
	require.Equal(t, "alert", KindAlert.String())
	require.Equal(t, "unknown", Kind(9).String())
}

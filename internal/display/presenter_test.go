package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shaibs3/PriceTracker/internal/clock"
	"github.com/shaibs3/PriceTracker/internal/db"
	"github.com/shaibs3/PriceTracker/internal/scrape"
	"github.com/shaibs3/PriceTracker/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestPresenter(t *testing.T) (*Presenter, *store.InMemoryProvider, chan scrape.Message, *clock.MockClock) {
	clk := clock.NewMockClock(baseTime)
	s := store.NewInMemoryProvider(clk)
	queue := make(chan scrape.Message, 16)
	return NewPresenter(s, queue, 0, zap.NewNop()), s, queue, clk
}

func TestPresenter_RowsFormatting(t *testing.T) {
	p, s, _, _ := newTestPresenter(t)
	ctx := context.Background()

	never, err := s.CreateProduct(ctx, "https://shop.test/new", ".price", "", nil)
	require.NoError(t, err)
	priced, err := s.CreateProduct(ctx, "https://shop.test/priced", ".price", ".stock", nil)
	require.NoError(t, err)
	empty, err := s.CreateProduct(ctx, "https://shop.test/empty", ".price", ".stock", nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendRecord(ctx, priced, ptr(1234.5), ptr("In Stock")))
	require.NoError(t, s.AppendRecord(ctx, empty, nil, nil))

	require.NoError(t, p.Refresh(ctx))
	rows := p.Rows()
	require.Len(t, rows, 3)

	stamp := baseTime.Local().Format("2006-01-02 15:04:05")
	require.Equal(t, ProductRow{ID: never, URL: "https://shop.test/new", Price: "N/A", Availability: "N/A", LastUpdated: "Never"}, rows[0])
	require.Equal(t, ProductRow{ID: priced, URL: "https://shop.test/priced", Price: "$1234.50", Availability: "In Stock", LastUpdated: stamp}, rows[1])
	require.Equal(t, ProductRow{ID: empty, URL: "https://shop.test/empty", Price: "N/A", Availability: "N/A", LastUpdated: stamp}, rows[2])
}

func TestPresenter_DrainIsNonBlocking(t *testing.T) {
	p, _, _, _ := newTestPresenter(t)

	done := make(chan int)
	go func() { done <- p.Drain(context.Background()) }()
	select {
	case n := <-done:
		require.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("Drain blocked on an empty queue")
	}
}

func TestPresenter_DrainHandlesMessagesInOrder(t *testing.T) {
	p, s, queue, _ := newTestPresenter(t)
	ctx := context.Background()
	id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", ptr(50.0))
	require.NoError(t, err)

	require.Empty(t, p.Rows(), "rows only change on refresh")

	queue <- scrape.Message{Kind: scrape.KindAlert, Text: "first", ProductID: id, Threshold: 50}
	queue <- scrape.Message{Kind: scrape.KindAlert, Text: "second", ProductID: id, Threshold: 50}
	queue <- scrape.RefreshMessage()

	require.Equal(t, 3, p.Drain(ctx))
	require.Len(t, p.Rows(), 1)

	alerts := p.Alerts()
	require.Len(t, alerts, 2)
	require.Equal(t, "first", alerts[0].Text)
	require.Equal(t, "second", alerts[1].Text)
}

func TestPresenter_AlertsAreBounded(t *testing.T) {
	p, _, queue, _ := newTestPresenter(t)
	for i := 0; i < maxAlerts+10; i++ {
		queue <- scrape.Message{Kind: scrape.KindAlert, Text: "drop"}
		p.Drain(context.Background())
	}
	require.Len(t, p.Alerts(), maxAlerts)
}

func TestPresenter_History(t *testing.T) {
	p, s, _, clk := newTestPresenter(t)
	ctx := context.Background()
	id, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", ".stock", nil)
	require.NoError(t, err)

	require.NoError(t, s.AppendRecord(ctx, id, ptr(10.0), nil))
	clk.Advance(time.Hour)
	require.NoError(t, s.AppendRecord(ctx, id, nil, ptr("Sold out")))

	rows, err := p.History(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []HistoryRow{
		{Timestamp: baseTime.Add(time.Hour).Local().Format("2006-01-02 15:04:05"), Price: "N/A", Availability: "Sold out"},
		{Timestamp: baseTime.Local().Format("2006-01-02 15:04:05"), Price: "$10.00", Availability: "N/A"},
	}, rows)
}

func TestPresenter_RunPollsQueue(t *testing.T) {
	clk := clock.NewMockClock(baseTime)
	s := store.NewInMemoryProvider(clk)
	queue := make(chan scrape.Message, 4)
	p := NewPresenter(s, queue, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	_, err := s.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
	require.NoError(t, err)
	queue <- scrape.RefreshMessage()

	require.Eventually(t, func() bool { return len(p.Rows()) == 1 }, time.Second, 5*time.Millisecond)
}

// gatedStore holds the first ListProducts call after taking its snapshot.
type gatedStore struct {
	store.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListProducts(ctx context.Context) ([]db.Product, error) {
	products, err := g.Store.ListProducts(ctx)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return products, err
}

func TestPresenter_SlowRefreshDoesNotOverwriteNewerRows(t *testing.T) {
	inner := store.NewInMemoryProvider(clock.NewMockClock(baseTime))
	gated := &gatedStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	p := NewPresenter(gated, make(chan scrape.Message), 0, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		require.NoError(t, p.Refresh(ctx))
	}()
	<-gated.entered

	_, err := inner.CreateProduct(ctx, "https://shop.test/a", ".price", "", nil)
	require.NoError(t, err)
	go func() {
		defer wg.Done()
		require.NoError(t, p.Refresh(ctx))
	}()

	time.Sleep(20 * time.Millisecond)
	close(gated.release)
	wg.Wait()

	require.Len(t, p.Rows(), 1, "the later refresh sees the new product")
}

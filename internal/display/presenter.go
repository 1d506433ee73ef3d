package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaibs3/PriceTracker/internal/scrape"
	"github.com/shaibs3/PriceTracker/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	maxAlerts           = 100
)

// Alert is a price alert as received by the display.
type Alert struct {
	Text       string    `json:"text"`
	ProductID  int64     `json:"product_id"`
	URL        string    `json:"url"`
	Price      float64   `json:"price"`
	Threshold  float64   `json:"threshold"`
	ReceivedAt time.Time `json:"received_at"`
}

// Presenter owns the receiving end of the scrape message queue and the
// rows shown to users. It polls the queue and never blocks on it.
type Presenter struct {
	store        store.Store
	inbox        <-chan scrape.Message
	pollInterval time.Duration
	logger       *zap.Logger

	// refreshMu spans the store read and the row swap so a slower refresh
	// never overwrites rows from a newer one.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	rows   []ProductRow
	alerts []Alert
}

func NewPresenter(s store.Store, inbox <-chan scrape.Message, pollInterval time.Duration, logger *zap.Logger) *Presenter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Presenter{
		store:        s,
		inbox:        inbox,
		pollInterval: pollInterval,
		logger:       logger.Named("display"),
	}
}

// Run drains the queue every poll interval until ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("initial refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Drain(ctx)
		}
	}
}

// Drain handles every queued message and returns how many there were.
func (p *Presenter) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case msg := <-p.inbox:
			n++
			p.handle(ctx, msg)
		default:
			return n
		}
	}
}

func (p *Presenter) handle(ctx context.Context, msg scrape.Message) {
	switch msg.Kind {
	case scrape.KindRefresh:
		if err := p.Refresh(ctx); err != nil {
			p.logger.Error("refresh failed", zap.Error(err))
		}
	case scrape.KindAlert:
		p.logger.Info("price alert", zap.String("text", msg.Text))
		p.mu.Lock()
		p.alerts = append(p.alerts, Alert{
			Text:       msg.Text,
			ProductID:  msg.ProductID,
			URL:        msg.URL,
			Price:      msg.Price,
			Threshold:  msg.Threshold,
			ReceivedAt: time.Now(),
		})
		if len(p.alerts) > maxAlerts {
			p.alerts = p.alerts[len(p.alerts)-maxAlerts:]
		}
		p.mu.Unlock()
	default:
		p.logger.Warn("unknown message", zap.Stringer("kind", msg.Kind))
	}
}

// Refresh rebuilds the product rows from the store.
func (p *Presenter) Refresh(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	products, err := p.store.ListProducts(ctx)
	if err != nil {
		return err
	}
	rows := make([]ProductRow, 0, len(products))
	for _, prod := range products {
		latest, err := p.store.LatestRecord(ctx, prod.ID)
		if err != nil {
			return fmt.Errorf("latest record of product %d: %w", prod.ID, err)
		}
		rows = append(rows, newProductRow(prod, latest))
	}

	p.mu.Lock()
	p.rows = rows
	p.mu.Unlock()
	return nil
}

// Rows returns the product rows as of the last refresh.
func (p *Presenter) Rows() []ProductRow {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ProductRow(nil), p.rows...)
}

// Alerts returns received alerts, oldest first.
func (p *Presenter) Alerts() []Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Alert(nil), p.alerts...)
}

// History reads the history view of one product straight from the store.
func (p *Presenter) History(ctx context.Context, productID int64) ([]HistoryRow, error) {
	records, err := p.store.History(ctx, productID, store.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]HistoryRow, len(records))
	for i, rec := range records {
		rows[i] = newHistoryRow(rec)
	}
	return rows, nil
}

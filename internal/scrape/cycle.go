package scrape

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/shaibs3/PriceTracker/internal/db"
	"github.com/shaibs3/PriceTracker/internal/fetcher"
	"github.com/shaibs3/PriceTracker/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FieldExtractor pulls the price and availability out of a page.
type FieldExtractor interface {
	Extract(doc *goquery.Document, priceSelector, availabilitySelector string) (*float64, *string)
}

// Cycle is one pass over every tracked product: fetch, extract, record and
// check the alert threshold.
type Cycle struct {
	store     store.Store
	fetcher   fetcher.Fetcher
	extractor FieldExtractor
	out       chan<- Message
	metrics   *Metrics
	logger    *zap.Logger
}

func NewCycle(s store.Store, f fetcher.Fetcher, e FieldExtractor, out chan<- Message, metrics *Metrics, logger *zap.Logger) *Cycle {
	if metrics == nil {
		metrics, _ = NewMetrics(nil)
	}
	return &Cycle{
		store:     s,
		fetcher:   f,
		extractor: e,
		out:       out,
		metrics:   metrics,
		logger:    logger.Named("cycle"),
	}
}

// Run scrapes every product once, in store order. A product whose page cannot
// be fetched is skipped without a record. Failing to list products aborts the
// pass; failing to store a record does not, and all such errors are returned
// together once the pass is done.
func (c *Cycle) Run(ctx context.Context) error {
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		c.metrics.storeFailed(ctx, "list_products")
		return fmt.Errorf("scrape cycle: %w", err)
	}

	c.logger.Info("scrape cycle started", zap.Int("products", len(products)))

	var errs error
	for _, p := range products {
		if err := c.scrapeProduct(ctx, p); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	c.metrics.cycleDone(ctx, len(products))
	c.logger.Info("scrape cycle finished", zap.Int("products", len(products)), zap.Int("errors", len(multierr.Errors(errs))))
	return errs
}

func (c *Cycle) scrapeProduct(ctx context.Context, p db.Product) error {
	log := c.logger.With(zap.Int64("product_id", p.ID), zap.String("url", p.URL))

	doc, err := c.fetcher.Fetch(ctx, p.URL)
	if err != nil {
		c.metrics.fetchFailed(ctx)
		log.Warn("skipping product, page could not be fetched", zap.Error(err))
		return nil
	}

	price, availability := c.extractor.Extract(doc, p.PriceSelector, p.AvailabilitySelector)

	// a reachable page with no matches is still recorded
	if err := c.store.AppendRecord(ctx, p.ID, price, availability); err != nil {
		c.metrics.storeFailed(ctx, "append_record")
		log.Error("failed to record price", zap.Error(err))
		return fmt.Errorf("product %d: %w", p.ID, err)
	}
	c.metrics.recordWritten(ctx, price != nil)
	log.Debug("price recorded", zap.Float64p("price", price), zap.Stringp("availability", availability))

	if price != nil && p.AlertThreshold != nil && *price < *p.AlertThreshold {
		c.emitAlert(ctx, p, *price)
	}
	return nil
}

func (c *Cycle) emitAlert(ctx context.Context, p db.Product, price float64) {
	threshold := *p.AlertThreshold
	msg := Message{
		Kind:      KindAlert,
		Text:      fmt.Sprintf("Price dropped below %s for %s", strconv.FormatFloat(threshold, 'f', -1, 64), p.URL),
		ProductID: p.ID,
		URL:       p.URL,
		Price:     price,
		Threshold: threshold,
	}
	c.logger.Info("price alert", zap.Int64("product_id", p.ID), zap.Float64("price", price), zap.Float64("threshold", threshold))
	c.metrics.alertEmitted(ctx)

	select {
	case c.out <- msg:
	case <-ctx.Done():
		c.logger.Warn("alert dropped, shutting down", zap.Int64("product_id", p.ID))
	}
}

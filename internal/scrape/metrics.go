package scrape

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics are the counters a Cycle reports to.
type Metrics struct {
	cycles         metric.Int64Counter
	fetchFailures  metric.Int64Counter
	recordsWritten metric.Int64Counter
	alerts         metric.Int64Counter
	storeErrors    metric.Int64Counter
}

// NewMetrics registers the scrape counters on meter. A nil meter disables them.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("scrape")
	}
	m := &Metrics{}
	var err error
	if m.cycles, err = meter.Int64Counter("pricetracker_scrape_cycles",
		metric.WithDescription("Completed scrape cycles")); err != nil {
		return nil, err
	}
	if m.fetchFailures, err = meter.Int64Counter("pricetracker_fetch_failures",
		metric.WithDescription("Products skipped because every fetch attempt failed")); err != nil {
		return nil, err
	}
	if m.recordsWritten, err = meter.Int64Counter("pricetracker_price_records",
		metric.WithDescription("Price records written")); err != nil {
		return nil, err
	}
	if m.alerts, err = meter.Int64Counter("pricetracker_price_alerts",
		metric.WithDescription("Price alerts emitted")); err != nil {
		return nil, err
	}
	if m.storeErrors, err = meter.Int64Counter("pricetracker_store_errors",
		metric.WithDescription("Failed store operations during a cycle")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) cycleDone(ctx context.Context, products int) {
	m.cycles.Add(ctx, 1, metric.WithAttributes(attribute.Int("products", products)))
}

func (m *Metrics) fetchFailed(ctx context.Context) { m.fetchFailures.Add(ctx, 1) }

func (m *Metrics) recordWritten(ctx context.Context, priced bool) {
	m.recordsWritten.Add(ctx, 1, metric.WithAttributes(attribute.Bool("priced", priced)))
}

func (m *Metrics) alertEmitted(ctx context.Context) { m.alerts.Add(ctx, 1) }

func (m *Metrics) storeFailed(ctx context.Context, op string) {
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

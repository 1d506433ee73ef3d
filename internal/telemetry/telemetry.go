package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/shaibs3/PriceTracker"

// Telemetry owns the meter provider and the Prometheus registry it exports to.
type Telemetry struct {
	Meter    metric.Meter
	Registry *prometheus.Registry

	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewTelemetry sets up an OpenTelemetry meter backed by a dedicated Prometheus registry.
func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	tel := &Telemetry{
		Meter:    provider.Meter(meterName),
		Registry: registry,
		provider: provider,
		logger:   logger.Named("telemetry"),
	}
	tel.logger.Info("telemetry initialized")
	return tel, nil
}

// Handler serves the registry in the Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

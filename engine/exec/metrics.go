package exec

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/guidebook/engine/core"
)

// Metrics records one counter and one latency histogram per dispatch,
// labeled by the handler that claimed the request and the outcome. A nil
// *Metrics records nothing.
type Metrics struct {
	dispatches metric.Int64Counter
	latency    metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	dispatches, err := meter.Int64Counter(
		"guidebook_dispatch_total",
		metric.WithDescription("Task bodies dispatched, by handler and status"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"guidebook_dispatch_duration_seconds",
		metric.WithDescription("Time spent executing dispatched task bodies"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{dispatches: dispatches, latency: latency}, nil
}

func (m *Metrics) observe(handler string, res Result, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := res.Status
	if err != nil {
		status = core.StatusError
	} else if status == core.StatusBlank {
		status = core.StatusSuccess
	}
	attrs := metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("status", status.String()),
	)
	ctx := context.Background()
	m.dispatches.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}

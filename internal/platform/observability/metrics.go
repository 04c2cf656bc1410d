package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/comandas/api/internal/platform/observability"

var (
	metricsOnce     sync.Once
	requestCounter  metric.Int64Counter
	requestDuration metric.Float64Histogram
)

func requestInstruments() (metric.Int64Counter, metric.Float64Histogram) {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		requestCounter, _ = meter.Int64Counter(
			"http.server.request.count",
			metric.WithDescription("Completed HTTP requests"),
		)
		requestDuration, _ = meter.Float64Histogram(
			"http.server.request.duration",
			metric.WithDescription("HTTP request latency"),
			metric.WithUnit("ms"),
		)
	})
	return requestCounter, requestDuration
}

func recordRequestMetrics(ctx context.Context, method, route string, status int, latency time.Duration) {
	counter, histogram := requestInstruments()
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	if counter != nil {
		counter.Add(ctx, 1, attrs)
	}
	if histogram != nil {
		histogram.Record(ctx, float64(latency)/float64(time.Millisecond), attrs)
	}
}

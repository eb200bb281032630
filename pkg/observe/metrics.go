// Package observe provides the dispatcher's OpenTelemetry metrics and
// tracing, plus the provider setup that exposes them to Prometheus.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] rather than the global one.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for oracle metrics.
const meterName = "github.com/pario-ai/oracle"

// Cache lookup results.
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheUnavailable = "unavailable"
)

// Metrics holds the dispatcher's metric instruments. All fields are safe
// for concurrent use.
type Metrics struct {
	// Requests counts finished requests. Attributes: model, status, kind.
	Requests metric.Int64Counter

	// CacheLookups counts journal lookups. Attributes: result.
	CacheLookups metric.Int64Counter

	// JournalErrors counts failed journal exchanges. Attributes: op.
	JournalErrors metric.Int64Counter

	// ThrottleWait tracks time spent waiting for an endpoint's rate slot.
	ThrottleWait metric.Float64Histogram

	// ExecutionDuration tracks provider exchange latency. Attributes: model.
	ExecutionDuration metric.Float64Histogram

	// InFlight is the number of requests holding a pool slot.
	InFlight metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds, sized for remote
// completions that can run for minutes.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Requests, err = m.Int64Counter("oracle.requests",
		metric.WithDescription("Finished requests by model, status, and failure kind."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("oracle.cache.lookups",
		metric.WithDescription("Journal lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.JournalErrors, err = m.Int64Counter("oracle.journal.errors",
		metric.WithDescription("Failed journal exchanges by operation."),
	); err != nil {
		return nil, err
	}
	if met.ThrottleWait, err = m.Float64Histogram("oracle.throttle.wait",
		metric.WithDescription("Time spent waiting for an endpoint rate slot."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExecutionDuration, err = m.Float64Histogram("oracle.execution.duration",
		metric.WithDescription("Latency of provider exchanges."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("oracle.in_flight",
		metric.WithDescription("Requests currently holding a worker slot."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a shared Metrics built from the global meter
// provider on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordRequest counts one finished request. kind is empty for successes.
func (m *Metrics) RecordRequest(ctx context.Context, model, status, kind string) {
	m.Requests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
			attribute.String("kind", kind),
		),
	)
}

// RecordCacheLookup counts one journal lookup.
func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordJournalError counts one failed journal exchange.
func (m *Metrics) RecordJournalError(ctx context.Context, op string) {
	m.JournalErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordThrottleWait records a rate-limit delay for an endpoint.
func (m *Metrics) RecordThrottleWait(ctx context.Context, endpoint string, d time.Duration) {
	m.ThrottleWait.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordExecution records a provider exchange latency.
func (m *Metrics) RecordExecution(ctx context.Context, model string, d time.Duration) {
	m.ExecutionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model", model)))
}

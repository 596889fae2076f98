package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes reported by RecordLookup.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomePartial  = "partial"
	OutcomeDegraded = "degraded"
)

// Metrics records tool, cache and upstream metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a tool execution with duration and error status.
	RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error)

	// RecordLookup records how a data request was served by the cache.
	RecordLookup(ctx context.Context, resource, outcome string)

	// RecordFetch records one upstream fetch.
	RecordFetch(ctx context.Context, resource string, duration time.Duration, records int, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram

	lookups     metric.Int64Counter
	fetches     metric.Int64Counter
	fetchErrors metric.Int64Counter
	fetchRows   metric.Int64Counter
	fetchHist   metric.Float64Histogram
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter("tool.exec.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.errorCount, err = meter.Int64Counter("tool.exec.errors",
		metric.WithDescription("Total number of tool execution errors"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram("tool.exec.duration_ms",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter("cache.lookups",
		metric.WithDescription("Data requests by cache outcome"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.fetches, err = meter.Int64Counter("upstream.fetch.total",
		metric.WithDescription("Upstream fetches"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter("upstream.fetch.errors",
		metric.WithDescription("Failed upstream fetches"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.fetchRows, err = meter.Int64Counter("upstream.fetch.records",
		metric.WithDescription("Records returned by upstream fetches"),
		metric.WithUnit("{record}")); err != nil {
		return nil, err
	}
	if m.fetchHist, err = meter.Float64Histogram("upstream.fetch.duration_ms",
		metric.WithDescription("Upstream fetch duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", meta.Name),
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("tool.category", meta.Category))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, resource, outcome string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("data.resource", resource),
		attribute.String("cache.outcome", outcome),
	))
}

func (m *metricsImpl) RecordFetch(ctx context.Context, resource string, duration time.Duration, records int, err error) {
	opt := metric.WithAttributes(attribute.String("data.resource", resource))

	m.fetches.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchRows.Add(ctx, int64(records), opt)
	m.fetchHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopMetrics struct{}

// NopMetrics returns Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordExecution(context.Context, ToolMeta, time.Duration, error) {}
func (noopMetrics) RecordLookup(context.Context, string, string)                    {}
func (noopMetrics) RecordFetch(context.Context, string, time.Duration, int, error)  {}

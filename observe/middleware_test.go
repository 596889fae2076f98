package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
	tel    Telemetry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	var logs bytes.Buffer
	return &harness{
		spans:  spans,
		reader: reader,
		logs:   &logs,
		tel: Telemetry{
			Logger:  NewLoggerWithWriter("debug", &logs),
			Metrics: metrics,
			Tracer:  NewTracer(tp.Tracer("test")),
		},
	}
}

func (h *harness) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMiddleware_SuccessPath(t *testing.T) {
	h := newHarness(t)
	mw := NewMiddleware(h.tel)

	wrapped := mw.Wrap(func(ctx context.Context, tool ToolMeta, args map[string]any) (any, error) {
		return args["symbol"], nil
	})
	got, err := wrapped(context.Background(), ToolMeta{Name: "index_history"}, map[string]any{"symbol": "000300"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "000300" {
		t.Errorf("result = %v", got)
	}

	ended := h.spans.Ended()
	if len(ended) != 1 || ended[0].Name() != "tool.exec.index_history" {
		t.Fatalf("unexpected spans: %v", ended)
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v", ended[0].Status())
	}
	if n := h.sum(t, "tool.exec.total"); n != 1 {
		t.Errorf("tool.exec.total = %d", n)
	}
	if n := h.sum(t, "tool.exec.errors"); n != 0 {
		t.Errorf("tool.exec.errors = %d", n)
	}
	if !bytes.Contains(h.logs.Bytes(), []byte("tool execution completed")) {
		t.Errorf("missing completion log: %s", h.logs.String())
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	h := newHarness(t)
	mw := NewMiddleware(h.tel)
	boom := errors.New("upstream down")

	wrapped := mw.Wrap(func(context.Context, ToolMeta, map[string]any) (any, error) {
		return nil, boom
	})
	_, err := wrapped(context.Background(), ToolMeta{Name: "margin_history"}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	ended := h.spans.Ended()
	if len(ended) != 1 || ended[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %v", ended)
	}
	if n := h.sum(t, "tool.exec.errors"); n != 1 {
		t.Errorf("tool.exec.errors = %d", n)
	}
	if !bytes.Contains(h.logs.Bytes(), []byte("tool execution failed")) {
		t.Errorf("missing failure log: %s", h.logs.String())
	}
}

func TestMetrics_LookupAndFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.tel.Metrics.RecordLookup(ctx, "index", OutcomeHit)
	h.tel.Metrics.RecordLookup(ctx, "index", OutcomePartial)
	h.tel.Metrics.RecordFetch(ctx, "index", 20*time.Millisecond, 5, nil)
	h.tel.Metrics.RecordFetch(ctx, "index", 20*time.Millisecond, 0, errors.New("x"))

	if n := h.sum(t, "cache.lookups"); n != 2 {
		t.Errorf("cache.lookups = %d", n)
	}
	if n := h.sum(t, "upstream.fetch.total"); n != 2 {
		t.Errorf("upstream.fetch.total = %d", n)
	}
	if n := h.sum(t, "upstream.fetch.errors"); n != 1 {
		t.Errorf("upstream.fetch.errors = %d", n)
	}
	if n := h.sum(t, "upstream.fetch.records"); n != 5 {
		t.Errorf("upstream.fetch.records = %d", n)
	}
}

func TestTracer_StartOp(t *testing.T) {
	h := newHarness(t)
	_, span := h.tel.Tracer.StartOp(context.Background(), Op{Stage: "fetch", Resource: "margin", Key: "mc:margin:ab"})
	h.tel.Tracer.EndSpan(span, nil)

	ended := h.spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != "data.fetch.margin" {
		t.Errorf("span name = %q", ended[0].Name())
	}
}

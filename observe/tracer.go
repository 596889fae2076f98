package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ToolMeta describes a registered tool for telemetry purposes.
type ToolMeta struct {
	Name     string // Tool name (required)
	Resource string // Data resource the tool reads, if any
	Category string // history|snapshot
}

// SpanName returns the deterministic span name for this tool.
// Format: tool.exec.<name>
func (m ToolMeta) SpanName() string {
	return "tool.exec." + m.Name
}

// Op describes one data-layer operation for span naming.
type Op struct {
	Stage    string // lookup|fetch|merge|write
	Resource string
	Key      string
}

// SpanName returns data.<stage>.<resource>.
func (o Op) SpanName() string {
	if o.Resource == "" {
		return "data." + o.Stage
	}
	return "data." + o.Stage + "." + o.Resource
}

// Tracer wraps OpenTelemetry tracing with tool and data-layer span naming.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for a tool execution.
	StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span)

	// StartOp starts a span for a cache or upstream operation.
	StartOp(ctx context.Context, op Op) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", meta.Name),
		attribute.Bool("tool.error", false),
	}
	if meta.Resource != "" {
		attrs = append(attrs, attribute.String("tool.resource", meta.Resource))
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("tool.category", meta.Category))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) StartOp(ctx context.Context, op Op) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("data.stage", op.Stage),
	}
	if op.Resource != "" {
		attrs = append(attrs, attribute.String("data.resource", op.Resource))
	}
	if op.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", op.Key))
	}

	kind := trace.SpanKindInternal
	if op.Stage == "fetch" {
		kind = trace.SpanKindClient
	}
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("tool.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer producing non-recording spans.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) StartOp(ctx context.Context, op Op) (context.Context, trace.Span) {
	return t.noop.Start(ctx, op.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}

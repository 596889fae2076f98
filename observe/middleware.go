package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature of a tool invocation.
type ExecuteFunc func(ctx context.Context, tool ToolMeta, args map[string]any) (any, error)

// Middleware wraps tool execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tel Telemetry
}

// NewMiddleware creates a Middleware on the given instruments.
func NewMiddleware(tel Telemetry) *Middleware {
	return &Middleware{tel: tel.OrNop()}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, tool ToolMeta, args map[string]any) (any, error) {
		ctx, span := m.tel.Tracer.StartSpan(ctx, tool)
		start := time.Now()

		result, err := fn(ctx, tool, args)

		duration := time.Since(start)
		m.tel.Tracer.EndSpan(span, err)
		m.tel.Metrics.RecordExecution(ctx, tool, duration, err)

		log := m.tel.Logger.WithTool(tool)
		if err != nil {
			log.Error(ctx, "tool execution failed", F("duration", duration), Err(err))
		} else {
			log.Info(ctx, "tool execution completed", F("duration", duration))
		}

		return result, err
	}
}

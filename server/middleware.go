package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jonwraymond/marketcache/observe"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID set by the server, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a caller-supplied X-Request-ID or generates a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// accessLog logs one line per request: warn for 4xx, error for 5xx.
func accessLog(log observe.Logger, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []observe.Field{
				observe.F("request_id", RequestIDFromContext(r.Context())),
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", ww.Status()),
				observe.F("bytes", ww.BytesWritten()),
				observe.F("duration", time.Since(start)),
			}
			switch status := ww.Status(); {
			case status >= 500:
				log.Error(r.Context(), "request completed", fields...)
			case status >= 400:
				log.Warn(r.Context(), "request completed", fields...)
			default:
				log.Info(r.Context(), "request completed", fields...)
			}
		})
	}
}

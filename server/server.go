package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/marketcache/auth"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/health"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/tools"
	"github.com/jonwraymond/marketcache/upstream"
)

// maxArgsBytes bounds a tool call body.
const maxArgsBytes = 1 << 20

// Config configures a Server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration // Default: 10s
	WriteTimeout    time.Duration // Default: 2m
	ShutdownTimeout time.Duration // Default: 10s

	// Metrics mounts promhttp on /metrics.
	Metrics bool
}

// Server serves the tool registry and health checks.
type Server struct {
	cfg      Config
	registry *tools.Registry
	health   *health.Aggregator
	auth     auth.Authenticator
	log      observe.Logger
	router   chi.Router
}

// New builds the router. authn may be nil to serve tools anonymously, and
// agg may be nil to skip the health routes.
func New(cfg Config, reg *tools.Registry, agg *health.Aggregator, authn auth.Authenticator, log observe.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if log == nil {
		log = observe.NopLogger()
	}

	s := &Server{
		cfg:      cfg,
		registry: reg,
		health:   agg,
		auth:     authn,
		log:      log.With(observe.F("component", "server")),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.log, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Recoverer)

	if s.health != nil {
		health.Routes(r, s.health)
	}
	if s.cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.auth, s.log))
		r.Get("/tools", s.listTools)
		r.Post("/tools/{name}", s.callTool)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.Addr until ctx is canceled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "server listening", observe.F("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info(ctx, "server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

type toolsResponse struct {
	Tools []tools.Tool `json:"tools"`
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toolsResponse{Tools: s.registry.List()})
}

func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := map[string]any{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxArgsBytes)).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: body must be a JSON object: %w", tools.ErrInvalidArgs, err))
		return
	}

	out, err := s.registry.Call(r.Context(), name, args)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrInvalidArgs), errors.Is(err, dataservice.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, dataservice.ErrUpstreamFetchFailed), errors.Is(err, upstream.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.log.Error(r.Context(), "tool call failed",
			observe.F("request_id", RequestIDFromContext(r.Context())),
			observe.F("path", r.URL.Path),
			observe.Err(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

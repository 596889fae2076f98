// Package app wires configuration into running components.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/marketcache/auth"
	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/config"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/health"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/resilience"
	"github.com/jonwraymond/marketcache/server"
	"github.com/jonwraymond/marketcache/tools"
	"github.com/jonwraymond/marketcache/upstream"
)

// ErrNoUpstream is returned by fetches when upstream.http.base_url is unset.
var ErrNoUpstream = errors.New("app: no upstream configured")

// App holds the components built from one configuration.
type App struct {
	Config    *config.Config
	Telemetry observe.Telemetry
	Cache     *cache.Manager
	Fetcher   *upstream.Guarded
	Service   *dataservice.Service
	Tools     *tools.Registry
	Health    *health.Aggregator
	Auth      auth.Authenticator

	obs observe.Observer
}

// Option customizes New.
type Option func(*options)

type options struct {
	clock   clockwork.Clock
	fetcher upstream.Fetcher
}

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithFetcher replaces the HTTP fetcher built from upstream.http. Guards
// still apply.
func WithFetcher(f upstream.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New builds every component. Only configuration errors are returned;
// unreachable cache backends degrade to misses inside cache.NewManager.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("app: observe: %w", err)
	}
	tel, err := observe.TelemetryFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("app: telemetry: %w", err)
	}

	a := &App{Config: cfg, Telemetry: tel, obs: obs}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.Config
	log := a.Telemetry.Logger

	cal, err := cfg.NewCalendar(o.clock)
	if err != nil {
		return err
	}

	a.Cache, err = cache.NewManager(ctx, cfg.Cache, cache.WithLogger(log), cache.WithClock(o.clock))
	if err != nil {
		return fmt.Errorf("app: cache: %w", err)
	}

	src := o.fetcher
	if src == nil {
		src, err = newHTTPFetcher(cfg.Upstream.HTTP, log)
		if err != nil {
			return err
		}
	}
	guard := cfg.Upstream.Guard
	if guard.Breaker != nil {
		b := *guard.Breaker
		b.Clock = o.clock
		guard.Breaker = &b
	}
	if guard.RateLimit != nil {
		rl := *guard.RateLimit
		rl.Clock = o.clock
		guard.RateLimit = &rl
	}
	a.Fetcher = upstream.NewGuarded(src, guard, a.Telemetry)

	svcOpts := []dataservice.Option{
		dataservice.WithCalendar(cal),
		dataservice.WithTelemetry(a.Telemetry),
	}
	if cfg.Service.Coalesce {
		svcOpts = append(svcOpts, dataservice.WithCoalescing())
	}
	a.Service = dataservice.New(a.Cache, a.Fetcher, svcOpts...)

	a.Tools = tools.NewRegistry(a.Telemetry)
	if err := tools.RegisterMarketTools(a.Tools, tools.Deps{
		Service:  a.Service,
		Snapshot: cache.NewSnapshot(a.Cache, 0),
		Fetcher:  a.Fetcher,
	}); err != nil {
		return fmt.Errorf("app: tools: %w", err)
	}

	a.Health = health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Health.Timeout, Clock: o.clock})
	a.Health.Register(health.NewCacheChecker(a.Cache))
	if b := a.Fetcher.Breaker(); b != nil {
		a.Health.Register(health.NewBreakerChecker(b))
	}
	if cfg.Health.MaxHeapMB > 0 {
		a.Health.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{
			MaxHeapBytes: uint64(cfg.Health.MaxHeapMB) << 20,
		}))
	}

	a.Auth, err = auth.New(cfg.Server.Auth)
	if err != nil {
		return fmt.Errorf("app: auth: %w", err)
	}
	return nil
}

func newHTTPFetcher(cfg upstream.HTTPConfig, log observe.Logger) (upstream.Fetcher, error) {
	if cfg.BaseURL == "" {
		log.Warn(context.Background(), "upstream.http.base_url is empty, only cached data will be served")
		return upstream.FetcherFunc(func(context.Context, upstream.Query) ([]record.Record, error) {
			return nil, resilience.Permanent(fmt.Errorf("%w: %w", upstream.ErrFetchFailed, ErrNoUpstream))
		}), nil
	}
	f, err := upstream.NewHTTPFetcher(cfg, upstream.WithFetchLogger(log))
	if err != nil {
		return nil, fmt.Errorf("app: upstream: %w", err)
	}
	return f, nil
}

// Server builds the HTTP server for the tool surface.
func (a *App) Server() *server.Server {
	s := a.Config.Server
	return server.New(server.Config{
		Addr:            s.Addr,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		Metrics:         a.Config.Observe.PrometheusEnabled(),
	}, a.Tools, a.Health, a.Auth, a.Telemetry.Logger)
}

// Close releases the cache backend and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

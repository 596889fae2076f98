package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/resilience"
)

// GuardConfig selects the guards placed in front of a Fetcher. A guard is
// enabled when its section is present.
type GuardConfig struct {
	// Name identifies the upstream in logs, metrics and health output.
	Name string `yaml:"name"`

	// Timeout bounds each attempt. Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	Retry     *resilience.RetryConfig          `yaml:"retry"`
	Breaker   *resilience.CircuitBreakerConfig `yaml:"breaker"`
	RateLimit *resilience.RateLimiterConfig    `yaml:"rate_limit"`
	Bulkhead  *resilience.BulkheadConfig       `yaml:"bulkhead"`
}

// DefaultGuardConfig returns a config with every guard enabled on its defaults.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:      name,
		Timeout:   10 * time.Second,
		Retry:     &resilience.RetryConfig{},
		Breaker:   &resilience.CircuitBreakerConfig{},
		RateLimit: &resilience.RateLimiterConfig{WaitOnLimit: true},
		Bulkhead:  &resilience.BulkheadConfig{MaxWait: time.Second},
	}
}

// Guarded runs a Fetcher through a resilience.Executor and records spans,
// metrics and retry logs for every fetch.
type Guarded struct {
	next    Fetcher
	name    string
	exec    *resilience.Executor
	breaker *resilience.CircuitBreaker
	tel     observe.Telemetry
}

// NewGuarded wraps next with the guards in cfg.
func NewGuarded(next Fetcher, cfg GuardConfig, tel observe.Telemetry) *Guarded {
	tel = tel.OrNop()
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	log := tel.Logger.With(observe.F("upstream", cfg.Name))

	opts := []resilience.ExecutorOption{resilience.WithTimeout(cfg.Timeout)}
	g := &Guarded{next: next, name: cfg.Name, tel: tel}

	if cfg.RateLimit != nil {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(*cfg.RateLimit)))
	}
	if cfg.Bulkhead != nil {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(*cfg.Bulkhead)))
	}
	if cfg.Breaker != nil {
		bc := *cfg.Breaker
		if bc.Name == "" {
			bc.Name = cfg.Name
		}
		user := bc.OnStateChange
		bc.OnStateChange = func(name string, from, to resilience.State) {
			log.Warn(context.Background(), "circuit state changed",
				observe.F("from", from.String()), observe.F("to", to.String()))
			if user != nil {
				user(name, from, to)
			}
		}
		g.breaker = resilience.NewCircuitBreaker(bc)
		opts = append(opts, resilience.WithCircuitBreaker(g.breaker))
	}
	if cfg.Retry != nil {
		rc := *cfg.Retry
		user := rc.OnRetry
		rc.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.Info(context.Background(), "retrying upstream fetch",
				observe.F("attempt", attempt), observe.F("delay", delay), observe.Err(err))
			if user != nil {
				user(attempt, err, delay)
			}
		}
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(rc)))
	}

	g.exec = resilience.NewExecutor(opts...)
	return g
}

// Name returns the upstream name.
func (g *Guarded) Name() string { return g.name }

// Breaker returns the circuit breaker, or nil when none is configured.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Fetch runs the wrapped fetch through the guards.
func (g *Guarded) Fetch(ctx context.Context, q Query) ([]record.Record, error) {
	ctx, span := g.tel.Tracer.StartOp(ctx, observe.Op{Stage: "fetch", Resource: q.Resource})
	start := time.Now()

	var records []record.Record
	err := g.exec.Execute(ctx, func(ctx context.Context) error {
		recs, err := g.next.Fetch(ctx, q)
		if err != nil {
			return err
		}
		records = recs
		return nil
	})

	g.tel.Metrics.RecordFetch(ctx, q.Resource, time.Since(start), len(records), err)
	g.tel.Tracer.EndSpan(span, err)
	if err != nil {
		if resilience.Rejected(err) {
			g.tel.Logger.Warn(ctx, "upstream fetch rejected by guard",
				observe.F("upstream", g.name), observe.F("resource", q.Resource), observe.Err(err))
		}
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %s: %w", ErrFetchFailed, q.Resource, err)
		}
		return nil, err
	}
	return records, nil
}

var _ Fetcher = (*Guarded)(nil)

package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures exponential-backoff retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay between retries.
	// Default: 5s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the delay after each attempt.
	// Default: 2.0
	Multiplier float64 `yaml:"multiplier"`

	// MaxElapsed bounds the total time spent retrying.
	// Default: 30s
	MaxElapsed time.Duration `yaml:"max_elapsed"`

	// RetryIf decides whether an error is worth another attempt.
	// Default: all errors except context cancellation and Permanent ones.
	RetryIf func(err error) bool `yaml:"-"`

	// OnRetry is called before each retry with the failed attempt number.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// Retry re-runs failed operations with jittered exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.MaxElapsed <= 0 {
		config.MaxElapsed = 30 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = DefaultIsFailure
	}
	return &Retry{config: config}
}

// Permanent marks err as not worth retrying. Retry.Execute returns err
// itself, unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Execute runs op until it succeeds, returns a non-retryable error or the
// attempt and time budgets run out. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay
	b.Multiplier = r.config.Multiplier

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(r.config.MaxElapsed),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}
		}),
	)
	return err
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without reaching upstream.
	StateOpen
	// StateHalfOpen means a limited number of probe calls are let through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded upstream in logs and health output.
	Name string `yaml:"name"`

	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMaxRequests is the number of concurrent probes in half-open state.
	// Default: 1
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`

	// OnStateChange is called with the breaker lock held; it must not call
	// back into the breaker.
	OnStateChange func(name string, from, to State) `yaml:"-"`

	// IsFailure decides whether an error counts against the circuit.
	// Default: any error except context.Canceled.
	IsFailure func(err error) bool `yaml:"-"`

	// Clock drives the reset timeout. Default: real clock
	Clock clockwork.Clock `yaml:"-"`
}

// BreakerSnapshot is a point-in-time view for health reporting.
type BreakerSnapshot struct {
	Name        string
	State       State
	Failures    int
	LastFailure time.Time
	OpenedAt    time.Time
}

// CircuitBreaker stops calling an upstream after repeated failures and
// probes it again after ResetTimeout.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	openedAt      time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = DefaultIsFailure
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// DefaultIsFailure counts every error except caller cancellation.
func DefaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Snapshot returns the breaker's current counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:        cb.config.Name,
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		OpenedAt:    cb.openedAt,
	}
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.failures = 0
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Clock.Now()
	failed := cb.config.IsFailure(err)

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		cb.lastFailure = now
		if cb.failures >= cb.config.MaxFailures {
			cb.openedAt = now
			cb.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		if cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		if failed {
			cb.lastFailure = now
			cb.openedAt = now
			cb.transitionLocked(StateOpen)
			return
		}
		cb.failures = 0
		cb.transitionLocked(StateClosed)
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Clock.Since(cb.openedAt) >= cb.config.ResetTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.halfOpenCount = 0
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

package health

import (
	"context"
	"time"
)

// Status orders check outcomes from best to worst, so the overall status
// of a set of results is their maximum.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means requests still succeed, possibly from cache only.
	StatusDegraded
	// StatusUnhealthy fails readiness.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Result is the outcome of one check. Duration and Timestamp are filled in
// by the Aggregator.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

func Degraded(message string, err error) Result {
	return Result{Status: StatusDegraded, Message: message, Error: err}
}

func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one component.
//
// Contract:
// - Concurrency: Check may be called from several goroutines at once.
// - Context: Check must return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc is a named check function.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string                     { return f.name }
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrCircuitOpen indicates an upstream's circuit breaker is open.
	ErrCircuitOpen = errors.New("health: upstream circuit open")
)

package resilience

import "errors"

// Rejections: the guarded upstream was not called.
var (
	ErrCircuitOpen       = errors.New("resilience: upstream circuit open")
	ErrRateLimitExceeded = errors.New("resilience: upstream request quota exhausted")
	ErrBulkheadFull      = errors.New("resilience: too many concurrent upstream calls")
)

// ErrTimeout marks an attempt cut off by the per-attempt timeout.
var ErrTimeout = errors.New("resilience: upstream attempt timed out")

// Rejected reports whether err means a guard refused the call before it
// reached the upstream.
func Rejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrBulkheadFull)
}

package health

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/resilience"
)

// CacheBackend is the part of cache.Manager the cache checker needs.
type CacheBackend interface {
	Ping(ctx context.Context) error
	Stats() cache.Stats
}

// NewCacheChecker reports the cache backend. An unreachable backend is
// Degraded: requests still succeed by going to upstream.
func NewCacheChecker(m CacheBackend) Checker {
	return NewCheckerFunc("cache", func(ctx context.Context) Result {
		s := m.Stats()
		details := map[string]any{
			"backend":       s.Backend,
			"hits":          s.Hits,
			"misses":        s.Misses,
			"hit_rate":      s.HitRate(),
			"set_failures":  s.SetFailures,
			"decode_errors": s.DecodeErrors,
		}
		if err := m.Ping(ctx); err != nil {
			return Degraded("cache backend unreachable, serving from upstream", err).WithDetails(details)
		}
		return Healthy(s.Backend + " backend reachable").WithDetails(details)
	})
}

// NewBreakerChecker reports an upstream's circuit breaker. An open or
// half-open circuit is Degraded: cached data is still served.
func NewBreakerChecker(cb *resilience.CircuitBreaker) Checker {
	return NewCheckerFunc("upstream."+cb.Name(), func(context.Context) Result {
		snap := cb.Snapshot()
		details := map[string]any{
			"state":    snap.State.String(),
			"failures": snap.Failures,
		}
		if !snap.LastFailure.IsZero() {
			details["last_failure"] = snap.LastFailure.UTC().Format("2006-01-02T15:04:05Z")
		}

		switch snap.State {
		case resilience.StateOpen:
			return Degraded("circuit open, serving cached data", ErrCircuitOpen).WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded("circuit half-open, probing upstream", nil).WithDetails(details)
		default:
			return Healthy("circuit closed").WithDetails(details)
		}
	})
}

// MemoryCheckerConfig configures the memory checker.
type MemoryCheckerConfig struct {
	// MaxHeapBytes is the heap size considered full. Zero disables the check.
	MaxHeapBytes uint64

	// WarningRatio of MaxHeapBytes reports Degraded. Default: 0.8
	WarningRatio float64

	// CriticalRatio of MaxHeapBytes reports Unhealthy. Default: 0.95
	CriticalRatio float64
}

// NewMemoryChecker reports heap usage against a configured ceiling. The
// in-process cache backend grows the heap, so this guards it.
func NewMemoryChecker(config MemoryCheckerConfig) Checker {
	if config.WarningRatio <= 0 || config.WarningRatio >= 1 {
		config.WarningRatio = 0.8
	}
	if config.CriticalRatio <= config.WarningRatio || config.CriticalRatio > 1 {
		config.CriticalRatio = 0.95
	}

	return NewCheckerFunc("memory", func(context.Context) Result {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		details := map[string]any{
			"heap_alloc_bytes": stats.HeapAlloc,
			"heap_objects":     stats.HeapObjects,
			"num_gc":           stats.NumGC,
			"goroutines":       runtime.NumGoroutine(),
		}
		if config.MaxHeapBytes == 0 {
			return Healthy("no heap limit configured").WithDetails(details)
		}

		ratio := float64(stats.HeapAlloc) / float64(config.MaxHeapBytes)
		details["usage_percent"] = ratio * 100
		msg := fmt.Sprintf("heap usage %.1f%%", ratio*100)
		switch {
		case ratio >= config.CriticalRatio:
			return Unhealthy(msg, nil).WithDetails(details)
		case ratio >= config.WarningRatio:
			return Degraded(msg, nil).WithDetails(details)
		default:
			return Healthy(msg).WithDetails(details)
		}
	})
}

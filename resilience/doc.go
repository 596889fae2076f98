// Package resilience guards calls to upstream data sources.
//
// Each upstream gets an Executor combining a token-bucket RateLimiter, a
// Bulkhead capping in-flight calls, a CircuitBreaker, exponential-backoff
// Retry and a per-attempt timeout:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 5, Burst: 5})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "eastmoney"})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
// Clocks are injectable (clockwork) so breaker and limiter behavior is
// tested without sleeping.
package resilience

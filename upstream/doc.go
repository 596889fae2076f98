// Package upstream defines the boundary to market-data sources.
//
// A Fetcher returns raw, time-ordered records for one resource over a date
// range. The package ships an HTTP JSON fetcher configured per resource and
// a Guarded wrapper that puts rate limiting, bulkheading, a circuit breaker,
// retries and a per-attempt timeout in front of any Fetcher.
//
// Failure and latency belong here: the cache layer above adds no timeouts
// of its own and only decides what to do when a fetch fails.
package upstream

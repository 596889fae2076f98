// Package health reports whether the cache backend and the upstream
// sources behind marketcache are usable.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// cache and upstream checkers never report Unhealthy: the data layer keeps
// serving when either is down, from upstream or from cache respectively,
// so they report Degraded instead.
//
// An Aggregator runs all registered checkers concurrently under one
// timeout, and Routes mounts the probes on a chi router:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewCacheChecker(manager))
//	agg.Register(health.NewBreakerChecker(guarded.Breaker()))
//	health.Routes(router, agg)
//
// /healthz is a liveness probe, /readyz fails only when a check is
// Unhealthy, and /health returns every result as JSON.
package health

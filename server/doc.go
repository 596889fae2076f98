// Package server exposes the tool registry over HTTP.
//
// Routes:
//
//	GET  /healthz, /readyz, /health, /health/{name}   health checks
//	GET  /metrics                                     Prometheus scrape (optional)
//	GET  /tools                                       tool catalog
//	POST /tools/{name}                                call a tool; JSON body holds the args
//
// Tool routes run behind auth.Middleware. Every response carries an
// X-Request-ID header.
package server

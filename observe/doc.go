// Package observe provides the logging, metrics and tracing used across
// marketcache.
//
// Logging is built on zerolog and can rotate to a file through lumberjack.
// Metrics and spans go through OpenTelemetry; the exporter is chosen by name
// (see the exporters subpackage). Components receive a Telemetry bundle and
// never touch global providers directly.
package observe

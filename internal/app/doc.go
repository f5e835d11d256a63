// Package app wires the pipeline HTTP service together.
//
// NewApplication builds telemetry, the schema registry, the in-memory run
// store and the run and health services, then mounts the handlers under
// /api/v1 behind the request ID, OpenTelemetry, error recovery and security
// header middleware. Rate limiting is added when enabled in configuration
// and /metrics is served when Prometheus metrics are on.
//
// Run serves until SIGINT, SIGTERM or context cancellation and then shuts
// the server down within the configured shutdown timeout.
package app

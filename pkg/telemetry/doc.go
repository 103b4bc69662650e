// Package telemetry groups the observability building blocks used by
// the policy engine.
//
//   - logging: structured slog logging with PII redaction
//   - metrics: Prometheus metrics collection
package telemetry

// Package tracing owns the OpenTelemetry tracer provider.
//
// Setup returns a Provider that exports spans over OTLP/HTTP when tracing is
// enabled and a no-op tracer otherwise, so callers always receive a usable
// trace.Tracer. StartSpan and SetError are the only helpers handoff code
// needs. Shutdown flushes pending spans and belongs to process teardown.
package tracing

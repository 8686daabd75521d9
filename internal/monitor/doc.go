// Package monitor runs handoffs between stages.
//
// MonitorHandoff drives one attempt through a fixed state machine:
//
//	STARTED -> VALIDATING -> (VALID | INVALID) -> PERSISTING -> (PERSISTED | PERSIST_FAILED) -> RECORDED
//
// A valid payload is canonicalized, checksummed, and written as an Envelope
// to <log_dir>/handoffs/<handoff id>.json before a success Metric is
// returned. An invalid payload is never written; a failure Metric is
// recorded instead and the validation error is returned to the caller.
// Advancing the run context is the caller's job.
//
// Metrics accumulate in memory for GenerateSummary, the periodic
// HealthCheck, and Export/Import. When a ledger, notifier, or tracer is
// attached, every attempt is also indexed, announced on the event bus, and
// wrapped in a span.
package monitor

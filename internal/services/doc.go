// Package services defines the shared failure vocabulary and context helpers
// consumed by every stage of the handoff pipeline.
//
// Key responsibilities:
//   - The error taxonomy: a PipelineError contract (id, kind, timestamp,
//     severity, retryability, metadata, cause, troubleshooting hints) and the
//     specialised kinds built on it (campaign, data, file operation, handoff,
//     run context, validation, external service, processing).
//   - A factory (New) that builds the right concrete error from a kind tag and
//     a field map, falling back to a generic error for unknown tags.
//   - Severity and retryability inference for foreign errors.
//   - Context helpers that stamp request ids, stage names, and pipeline ids for
//     logging and tracing.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services

// Package schema holds the per-pair handoff contracts and the validator that
// checks a wire payload against them.
//
// Validation never returns an error for an expected failure: callers receive
// a Result listing every failing field path in a stable order plus non-fatal
// warnings (missing optional sub-fields, oversized payloads). Result.Err
// converts a failed result into a services.ValidationError when the caller
// needs to propagate it.
package schema

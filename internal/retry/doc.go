// Package retry wraps fallible storage operations in a bounded
// exponential-backoff loop.
//
// Only failures whose class is on the policy's allow-list are retried
// (resource busy, too many open handles, temporarily unavailable, not-found or
// already-exists races). Everything else, including validation failures,
// terminates the loop on the first attempt. Do returns an explicit Result;
// Run is the error-returning variant that embeds the retry bookkeeping in a
// services.FileOperationError.
package retry

// Package runctx owns the run-scoped context object of a pipeline request.
//
// A Manager creates RunContexts at request entry (failing fast on missing
// campaign identity), advances them across handoffs, validates them, and
// keeps them in an in-memory registry keyed by request id. The registry is an
// explicit, constructor-injected service: there is no package-level state.
//
// Invariants enforced here: the correlation id never changes, the handoff
// chain is append-only, and the phase index only increases. Entries older
// than the configured TTL are removed by Cleanup, which RunSweeper calls on a
// fixed interval until its context is cancelled.
package runctx

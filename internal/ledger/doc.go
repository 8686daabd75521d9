// Package ledger indexes persisted handoff envelopes in SQLite.
//
// Envelope files under the handoff log directory remain the source of truth;
// the ledger records where each one lives together with its pipeline, stage
// pair, size, and checksum so records stay retrievable by pipeline after a
// restart. Failed handoffs are indexed too, without a path. The store runs in
// WAL mode and retries SQLITE_BUSY with a short backoff.
package ledger

// Package main hosts the baton CLI entrypoint and command graph.
//
// The Cobra command tree replays campaign runs from fixture files, checks
// handoff payloads against their stage-pair contracts, inspects the handoff
// ledger and persisted envelopes, reads summaries and metric exports, and
// scaffolds configuration. Configuration resolution and service wiring live
// in context.go so subcommands only deal with presentation.
package main

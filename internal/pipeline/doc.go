// Package pipeline runs a campaign through content, design, quality, and
// delivery.
//
// Runner owns one run at a time per request: it creates the run context,
// calls the external collaborators for each stage, builds and snapshots the
// stage context, and hands it to the next stage through the monitor before
// advancing the run context. Stages run strictly in order; a rejected
// handoff stops the run with the context left at its last advanced phase.
// Every run ends with a summary report, including failed ones.
//
// Background owns the periodic run-context sweep and monitor health loop
// with an explicit Start/Stop lifecycle.
package pipeline

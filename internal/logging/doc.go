// Package logging assembles structured slog loggers and formatting helpers used
// across baton.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with request ids, stages, pipeline ids, and correlation ids. The
// package also adapts external buffered log sinks to slog and provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing guarantees as the rest of the system.
package logging

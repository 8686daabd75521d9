// Package stage defines the fixed, ordered set of pipeline stages and the
// stage pairs a handoff may cross.
//
// Stage order is linear (orchestration, content, design, quality, delivery)
// and phase indices come from that order. Pair is a closed tagged variant of
// the three legal handoffs; switching on it must be exhaustive, so adding a
// pair means adding a constant and every contract that depends on it.
package stage

// Package distribution fans applied cache updates out to consumer sinks.
//
// Sinks are partitioned by symbol: a Notify for one symbol only touches
// the sinks registered under it. Each consumer drains a GrowableBuffer so
// delivery never blocks the caller.
package distribution

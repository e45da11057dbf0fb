// Package poller implements the demand-driven poll scheduler.
//
// The Poller:
//   - Runs only while at least one symbol is subscribed (the hub starts and stops it)
//   - Ticks every poll interval (default 15s)
//   - Requests a throttled fetch for every active symbol whose cache entry is stale
package poller

// Package snapshot persists the last known quote per symbol in PostgreSQL
// and loads it back for warm starts.
//
// Only the latest quote is kept (one row per symbol); this is not a quote
// history. Writes are coalesced in memory and flushed as one pgx batch per
// interval, and an upsert never replaces a row with an older timestamp.
package snapshot

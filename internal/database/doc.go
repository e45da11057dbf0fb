// Package database opens the PostgreSQL pool used by the snapshot store.
//
// The snapshot store keeps one row per symbol (the last known quote), so a
// single small pool is enough.
package database

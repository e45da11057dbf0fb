// Package cache holds the last-known quote per symbol.
//
// Puts are monotonic: a quote older than the stored one is discarded. Every
// applied put is forwarded once to each registered Notifier. Entries are never
// expired by age; freshness is a read-time question answered by IsFresh. An
// optional capacity bounds the store with least-recently-updated eviction.
package cache

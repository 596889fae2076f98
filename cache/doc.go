// Package cache stores fetched market data between requests.
//
// A Store is a namespaced byte store with expiry; MemoryStore, SQLiteStore
// and RedisStore implement it. Manager sits on top: it encodes Entry values
// with msgpack, derives keys with a Keyer, picks TTLs with a Policy and fails
// open, so a broken backend degrades to cache misses instead of errors.
//
// Snapshot caches whole results of non-series queries through the same
// Manager.
package cache

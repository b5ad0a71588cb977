// Package gamecache provides the cached owned-games lookup module. It wraps
// the slow Steam catalog client with a bounded TTL/LRU cache, collapses
// concurrent lookups for the same identity into one upstream fetch, persists
// periodic snapshots through the file store, and supports the `~flushgames`
// invalidation command.
package gamecache

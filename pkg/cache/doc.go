// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// The cache evicts the least recently used entry when it reaches capacity.
// Entries may carry a lifetime: expired entries are dropped lazily on Get and
// eagerly by Purge.
//
//	c := cache.NewLRUCache[string, *tenant.Tenant](1000, cache.WithTTL(5*time.Minute))
//	c.Put("code:acme", t)
//	t, ok := c.Get("code:acme")
//
// An eviction callback can be registered with SetEvictCallback to release
// resources held by evicted values.
package cache

// Package objcache composes the in-memory and disk-backed tiers into a
// single read-through / write-through cache: hot entries live in memory,
// everything durable lives on disk, and reads that miss memory but hit disk
// promote the value back into memory.
package objcache

// Cache is the public surface of a two-tier object cache keyed by string,
// holding values of type V.
type Cache[V any] interface {
	// Set writes key synchronously to the memory tier, then to the disk
	// tier, blocking for the duration of both.
	Set(key string, value V, cost uint64)
	// SetAsync writes key to the memory tier synchronously (so a
	// subsequent Get from the same goroutine always observes it), then
	// submits the disk write to a worker and invokes onDone there.
	SetAsync(key string, value V, cost uint64, onDone func(key string))

	// Get returns key's value, checking memory first and falling back to
	// disk. A disk hit promotes the value into the memory tier before
	// returning it.
	Get(key string) (V, bool)
	// GetAsync is the asynchronous counterpart of Get. The completion
	// always receives the value that was actually found, including on a
	// disk hit.
	GetAsync(key string, onDone func(key string, value V, ok bool))

	// Contains reports whether key is present in either tier.
	Contains(key string) bool
	ContainsAsync(key string, onDone func(key string, ok bool))

	// Remove deletes key from both tiers.
	Remove(key string)
	RemoveAsync(key string, onDone func(key string))

	// Clear empties both tiers.
	Clear()
	ClearAsync(onDone func())

	// TotalCost and TotalCount report disk tier totals, the durable
	// source of truth for the cache's contents.
	TotalCost() uint64
	TotalCount() int

	// Close stops background maintenance and releases the database handle.
	Close() error
}

var _ Cache[any] = (*HybridCache[any])(nil)

// Package memtier implements the in-memory LRU tier: a bounded, mutex
// guarded cache of recently written entries, fronting the slower disk tier.
package memtier

import (
	"sync"

	"github.com/objcache/objcache/evict"
	"github.com/objcache/objcache/internal/util"
)

// Tier is the in-memory LRU cache. It is safe for concurrent use. A zero
// Tier is not usable; construct one with New.
type Tier[V any] struct {
	mu  sync.Mutex
	l   *lru[V]
	opt Options

	hits, misses, evicts util.PaddedAtomicInt64
}

// New builds a Tier from opt (see DefaultOptions for the documented
// defaults) and, if opt.Events is set, subscribes it to memory-warning and
// background-entry notifications per opt.AutoPurgeOn*.
func New[V any](opt Options) *Tier[V] {
	t := &Tier[V]{
		l:   newLRU[V](),
		opt: opt.withDefaults(),
	}
	if t.opt.Events != nil {
		if t.opt.AutoPurgeOnMemoryWarning {
			t.opt.Events.OnMemoryWarning(t.Clear)
		}
		if t.opt.AutoPurgeOnBackground {
			t.opt.Events.OnBackgroundEntry(t.Clear)
		}
	}
	return t
}

// Set inserts or replaces key's value and cost, and always places the entry
// at the head of the LRU order. Set may evict other entries to stay within
// the configured limits. The entry it just wrote is evicted only when its
// own cost exceeds CostLimit.
func (t *Tier[V]) Set(key string, val V, cost uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.l.lookup(key); ok {
		t.l.setValue(n, val, cost)
	} else {
		t.l.insertAtHead(key, val, cost)
	}
	t.trimLocked()
	t.reportSizeLocked()
}

// Get returns key's value without promoting it in the LRU order: a read
// alone does not count as a write, so Get never moves an entry relative to
// its neighbors.
func (t *Tier[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.l.lookup(key)
	if !ok {
		var zero V
		t.misses.Add(1)
		t.opt.Metrics.Miss()
		return zero, false
	}
	t.hits.Add(1)
	t.opt.Metrics.Hit()
	return n.val, true
}

// Contains reports whether key is present without affecting LRU order or
// hit/miss accounting.
func (t *Tier[V]) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.l.lookup(key)
	return ok
}

// Remove deletes key if present. Explicit removal is never reported as an
// eviction.
func (t *Tier[V]) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.l.lookup(key)
	if !ok {
		return false
	}
	t.l.remove(n)
	t.reportSizeLocked()
	return true
}

// Clear empties the tier. Neither individual evictions nor the hit/miss
// counters are affected.
func (t *Tier[V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.l.clear()
	t.reportSizeLocked()
}

// TotalCost returns the current sum of entry costs held in the tier.
func (t *Tier[V]) TotalCost() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.l.totalCost
}

// TotalCount returns the current number of entries held in the tier.
func (t *Tier[V]) TotalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.l.totalCount
}

// Hits, Misses and Evictions are monotonically increasing counters, exposed
// for tests and for callers who don't wire a Metrics implementation.
func (t *Tier[V]) Hits() int64    { return t.hits.Load() }
func (t *Tier[V]) Misses() int64  { return t.misses.Load() }
func (t *Tier[V]) Evictions() int64 { return t.evicts.Load() }

// trimLocked evicts entries from the tail until both limits are satisfied.
// It loops rather than evicting a single entry per Set, because one
// oversized entry can leave the tier over its cost limit even after a
// single eviction.
func (t *Tier[V]) trimLocked() {
	for t.opt.CountLimit != 0 && uint64(t.l.totalCount) > t.opt.CountLimit {
		if !t.evictOneLocked(evict.Count) {
			break
		}
	}
	for t.opt.CostLimit != 0 && t.l.totalCost > t.opt.CostLimit {
		if !t.evictOneLocked(evict.Cost) {
			break
		}
	}
}

func (t *Tier[V]) evictOneLocked(reason evict.Reason) bool {
	n, ok := t.l.removeTail()
	if !ok {
		return false
	}
	_ = n
	t.evicts.Add(1)
	t.opt.Metrics.Evict(reason)
	return true
}

func (t *Tier[V]) reportSizeLocked() {
	t.opt.Metrics.Size(t.l.totalCount, int64(t.l.totalCost))
}

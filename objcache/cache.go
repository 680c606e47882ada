package objcache

import (
	"context"
	"errors"

	"github.com/objcache/objcache/disktier"
	"github.com/objcache/objcache/internal/singleflight"
	"github.com/objcache/objcache/memtier"
)

// ErrNoLoader is returned by GetOrLoad when a key misses both tiers and no
// Options.Loader was configured.
var ErrNoLoader = errors.New("objcache: no Loader configured")

// HybridCache composes a memtier.Tier and a disktier.Tier into the
// read-through / write-through policy described on Cache. The two tiers
// hold independent locks; HybridCache never holds both at once and does
// not coordinate them transactionally, so a crash between the memory write
// and the disk write can leave them briefly inconsistent — the disk tier is
// always the tier that wins on restart.
type HybridCache[V any] struct {
	mem  *memtier.Tier[V]
	disk *disktier.Tier[V]
	opt  Options[V]

	// sf coalesces concurrent GetOrLoad calls for the same key so
	// Options.Loader runs at most once per miss.
	sf singleflight.Group[string, V]
}

// New builds a HybridCache from opt. See Options for required fields and
// DefaultOptions for everything else's defaults.
func New[V any](opt Options[V]) (*HybridCache[V], error) {
	opt = opt.withDefaults()

	mem := memtier.New[V](opt.memtierOptions())
	disk, err := disktier.New[V](opt.disktierOptions())
	if err != nil {
		return nil, err
	}

	return &HybridCache[V]{mem: mem, disk: disk, opt: opt}, nil
}

// GetOrLoad returns key's value, loading it via Options.Loader on a miss
// against both tiers. Concurrent GetOrLoad calls for the same key are
// coalesced: Loader runs at most once, and every caller observes its
// result. If no Loader is configured, returns ErrNoLoader.
func (c *HybridCache[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	return c.sf.Do(ctx, key, func() (V, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, cost, err := c.opt.Loader(ctx, key)
		if err == nil {
			c.Set(key, v, cost)
		}
		return v, err
	})
}

// Set writes to the memory tier, then to the disk tier, in that order and
// both synchronously.
func (c *HybridCache[V]) Set(key string, value V, cost uint64) {
	c.mem.Set(key, value, cost)
	c.disk.Set(key, value, cost)
}

// SetAsync writes to the memory tier synchronously so a subsequent Get from
// the calling goroutine always observes it, then submits the disk write to
// a worker.
func (c *HybridCache[V]) SetAsync(key string, value V, cost uint64, onDone func(key string)) {
	c.mem.Set(key, value, cost)
	c.disk.SetAsync(key, value, cost, onDone)
}

// Get checks the memory tier first. On a miss it checks the disk tier and,
// on a disk hit, promotes the value into the memory tier with cost 0 before
// returning it; the promotion is best-effort and races harmlessly against
// concurrent promotions of the same key.
func (c *HybridCache[V]) Get(key string) (V, bool) {
	if v, ok := c.mem.Get(key); ok {
		return v, true
	}
	v, ok := c.disk.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	c.mem.Set(key, v, 0)
	c.opt.Metrics.Promote()
	return v, true
}

// GetAsync is the asynchronous counterpart of Get. It always passes the
// completion the value that was actually found — including on a disk hit,
// where the completion receives the freshly decoded value rather than a
// stale or zero placeholder.
func (c *HybridCache[V]) GetAsync(key string, onDone func(key string, value V, ok bool)) {
	if v, ok := c.mem.Get(key); ok {
		if onDone != nil {
			go onDone(key, v, ok)
		}
		return
	}
	c.disk.GetAsync(key, func(key string, value V, ok bool) {
		if ok {
			c.mem.Set(key, value, 0)
			c.opt.Metrics.Promote()
		}
		if onDone != nil {
			onDone(key, value, ok)
		}
	})
}

// Contains reports whether key is present in either tier.
func (c *HybridCache[V]) Contains(key string) bool {
	if c.mem.Contains(key) {
		return true
	}
	return c.disk.Contains(key)
}

// ContainsAsync is the asynchronous counterpart of Contains.
func (c *HybridCache[V]) ContainsAsync(key string, onDone func(key string, ok bool)) {
	if c.mem.Contains(key) {
		if onDone != nil {
			go onDone(key, true)
		}
		return
	}
	c.disk.ContainsAsync(key, onDone)
}

// Remove deletes key from both tiers.
func (c *HybridCache[V]) Remove(key string) {
	c.mem.Remove(key)
	c.disk.Remove(key)
}

// RemoveAsync removes key from the memory tier synchronously, then submits
// the disk removal to a worker.
func (c *HybridCache[V]) RemoveAsync(key string, onDone func(key string)) {
	c.mem.Remove(key)
	c.disk.RemoveAsync(key, onDone)
}

// Clear empties both tiers.
func (c *HybridCache[V]) Clear() {
	c.mem.Clear()
	c.disk.Clear()
}

// ClearAsync clears the memory tier synchronously, then submits the disk
// clear to a worker.
func (c *HybridCache[V]) ClearAsync(onDone func()) {
	c.mem.Clear()
	c.disk.ClearAsync(onDone)
}

// TotalCost returns the disk tier's total stored size, the durable source
// of truth for the cache's contents.
func (c *HybridCache[V]) TotalCost() uint64 { return c.disk.TotalCost() }

// TotalCount returns the disk tier's total entry count.
func (c *HybridCache[V]) TotalCount() int { return c.disk.TotalCount() }

// Close stops the disk tier's background maintenance and releases its
// database handle. The memory tier holds no closable resources.
func (c *HybridCache[V]) Close() error {
	return c.disk.Close()
}

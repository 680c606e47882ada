// Package disktier implements the disk-backed tier: a SQLite row per key,
// with values above a cost threshold spilled to a sidecar file, trimmed by
// cost, count, and age on a periodic maintenance tick.
package disktier

import (
	"errors"
	"sync"
	"time"

	"github.com/objcache/objcache/evict"
)

// Tier is the disk-backed cache tier. It is safe for concurrent use.
// Construct one with New; call Close to stop its maintenance loop and
// release the database handle.
type Tier[V any] struct {
	mu sync.Mutex
	st *store

	opt  Options
	exec *executor

	timer     *time.Timer
	stopped   chan struct{}
	closeOnce sync.Once
}

// New opens (or creates) the tier's on-disk directory and starts its
// periodic maintenance tick. opt.RootDir, opt.AppID, and opt.Codec are
// required; every other field falls back to DefaultOptions' values when
// zero, except CostLimit and CountLimit, where zero disables that trim.
func New[V any](opt Options) (*Tier[V], error) {
	opt = opt.withDefaults()
	if opt.RootDir == "" || opt.AppID == "" {
		return nil, errors.New("disktier: Options.RootDir and Options.AppID are required")
	}
	if opt.Codec == nil {
		return nil, errors.New("disktier: Options.Codec is required")
	}

	st, err := openStore(opt.RootDir, opt.AppID, opt.Hasher, opt.Logger)
	if err != nil {
		return nil, err
	}

	t := &Tier[V]{
		st:      st,
		opt:     opt,
		exec:    newExecutor(opt.Workers),
		stopped: make(chan struct{}),
	}
	t.timer = time.AfterFunc(opt.AutoInterval, t.runMaintenance)
	return t, nil
}

// Set encodes val via the configured Codec and persists it under key. If
// cost exceeds InlineThreshold the value is written to a sidecar file named
// by the Hasher's digest of key; otherwise it is stored inline in the row.
// Encode failures and disk failures are logged and leave the tier
// otherwise consistent; Set never panics or returns an error to the caller.
func (t *Tier[V]) Set(key string, val V, cost uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(key, val, cost)
}

func (t *Tier[V]) setLocked(key string, val V, cost uint64) {
	data, err := t.opt.Codec.Encode(val)
	if err != nil {
		t.opt.Logger.Printf("disktier: encode failed for %q, dropping write: %v", key, err)
		return
	}

	inlineFilename := ""
	if cost > t.opt.InlineThreshold {
		inlineFilename = t.opt.Hasher.Digest(key)
	}

	now := t.opt.Clock.Now()
	if err := t.st.write(key, data, inlineFilename, now); err != nil {
		t.opt.Logger.Printf("disktier: write failed for %q: %v", key, err)
		return
	}
	t.reportSizeLocked()
}

// SetAsync submits Set to the executor and invokes onDone, if non-nil, on
// the worker goroutine once the write completes.
func (t *Tier[V]) SetAsync(key string, val V, cost uint64, onDone func(key string)) {
	t.exec.submit(func() {
		t.Set(key, val, cost)
		if onDone != nil {
			onDone(key)
		}
	})
}

// Get decodes and returns the value stored under key, or reports absent.
// A decode failure is logged and treated as a miss for the failed key.
func (t *Tier[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(key)
}

func (t *Tier[V]) getLocked(key string) (V, bool) {
	var zero V
	data, ok, err := t.st.read(key, t.opt.Clock.Now())
	if err != nil {
		t.opt.Logger.Printf("disktier: read failed for %q: %v", key, err)
		t.opt.Metrics.Miss()
		return zero, false
	}
	if !ok {
		t.opt.Metrics.Miss()
		return zero, false
	}

	var v V
	if err := t.opt.Codec.Decode(data, &v); err != nil {
		t.opt.Logger.Printf("disktier: decode failed for %q: %v", key, err)
		t.opt.Metrics.Miss()
		return zero, false
	}
	t.opt.Metrics.Hit()
	return v, true
}

// GetAsync submits Get to the executor and invokes onDone on the worker
// goroutine with the result.
func (t *Tier[V]) GetAsync(key string, onDone func(key string, val V, ok bool)) {
	t.exec.submit(func() {
		v, ok := t.Get(key)
		if onDone != nil {
			onDone(key, v, ok)
		}
	})
}

// Contains reports whether key has a row, without decoding its value.
func (t *Tier[V]) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok, err := t.st.contains(key)
	if err != nil {
		t.opt.Logger.Printf("disktier: contains failed for %q: %v", key, err)
		return false
	}
	return ok
}

// ContainsAsync submits Contains to the executor.
func (t *Tier[V]) ContainsAsync(key string, onDone func(key string, ok bool)) {
	t.exec.submit(func() {
		ok := t.Contains(key)
		if onDone != nil {
			onDone(key, ok)
		}
	})
}

// Remove deletes key's row and sidecar file, if any. Explicit removal is
// never reported as an eviction.
func (t *Tier[V]) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.st.remove(key); err != nil {
		t.opt.Logger.Printf("disktier: remove failed for %q: %v", key, err)
		return
	}
	t.reportSizeLocked()
}

// RemoveAsync submits Remove to the executor.
func (t *Tier[V]) RemoveAsync(key string, onDone func(key string)) {
	t.exec.submit(func() {
		t.Remove(key)
		if onDone != nil {
			onDone(key)
		}
	})
}

// Clear deletes every row and sidecar file, and recreates the database
// schema from scratch.
func (t *Tier[V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.st.removeAll(); err != nil {
		t.opt.Logger.Printf("disktier: clear failed: %v", err)
		return
	}
	t.reportSizeLocked()
}

// ClearAsync submits Clear to the executor.
func (t *Tier[V]) ClearAsync(onDone func()) {
	t.exec.submit(func() {
		t.Clear()
		if onDone != nil {
			onDone()
		}
	})
}

// TotalCost returns the current sum of entry sizes held on disk.
func (t *Tier[V]) TotalCost() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total, err := t.st.totalSize()
	if err != nil {
		t.opt.Logger.Printf("disktier: total size: %v", err)
		return 0
	}
	return uint64(total)
}

// TotalCount returns the current number of entries held on disk.
func (t *Tier[V]) TotalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total, err := t.st.totalCount()
	if err != nil {
		t.opt.Logger.Printf("disktier: total count: %v", err)
		return 0
	}
	return total
}

// Close stops the maintenance timer, waits for in-flight asynchronous
// operations to finish, and closes the database handle.
func (t *Tier[V]) Close() error {
	t.closeOnce.Do(func() { close(t.stopped) })
	t.timer.Stop()
	t.exec.close()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.close()
}

// runMaintenance is the recurring task: trim by cost, then by count, then
// remove expired entries, and reschedule itself. It may run on any
// executor-adjacent goroutine, per the source's scheduling model.
func (t *Tier[V]) runMaintenance() {
	select {
	case <-t.stopped:
		return
	default:
	}

	t.mu.Lock()
	t.trimCostLocked()
	t.trimCountLocked()
	t.removeExpiredLocked()
	t.mu.Unlock()

	select {
	case <-t.stopped:
	default:
		t.timer.Reset(t.opt.AutoInterval)
	}
}

// trimCostLocked removes entries, oldest first, until total size is within
// CostLimit or a pass makes no progress.
func (t *Tier[V]) trimCostLocked() {
	if t.opt.CostLimit == 0 {
		return
	}
	for {
		rawTotal, err := t.st.totalSize()
		if err != nil {
			t.opt.Logger.Printf("disktier: trim_cost total size: %v", err)
			return
		}
		total := uint64(rawTotal)
		if total <= t.opt.CostLimit {
			return
		}
		items, err := t.st.oldestItems(16)
		if err != nil {
			t.opt.Logger.Printf("disktier: trim_cost oldest items: %v", err)
			return
		}
		if len(items) == 0 {
			return
		}

		progressed := false
		for _, it := range items {
			if err := t.st.deleteItem(it); err != nil {
				t.opt.Logger.Printf("disktier: trim_cost delete %q: %v", it.Key, err)
				continue
			}
			progressed = true
			total -= uint64(it.Size)
			t.opt.Metrics.Evict(evict.Cost)
			if total <= t.opt.CostLimit {
				break
			}
		}
		if err := t.st.checkpoint(); err != nil {
			t.opt.Logger.Printf("disktier: checkpoint after trim_cost: %v", err)
		}
		t.reportSizeLocked()
		if !progressed {
			return
		}
	}
}

// trimCountLocked removes entries, oldest first, until the entry count is
// within CountLimit or a pass makes no progress.
func (t *Tier[V]) trimCountLocked() {
	if t.opt.CountLimit == 0 {
		return
	}
	for {
		rawCount, err := t.st.totalCount()
		if err != nil {
			t.opt.Logger.Printf("disktier: trim_count total count: %v", err)
			return
		}
		count := uint64(rawCount)
		if count <= t.opt.CountLimit {
			return
		}
		items, err := t.st.oldestItems(16)
		if err != nil {
			t.opt.Logger.Printf("disktier: trim_count oldest items: %v", err)
			return
		}
		if len(items) == 0 {
			return
		}

		progressed := false
		for _, it := range items {
			if err := t.st.deleteItem(it); err != nil {
				t.opt.Logger.Printf("disktier: trim_count delete %q: %v", it.Key, err)
				continue
			}
			progressed = true
			count--
			t.opt.Metrics.Evict(evict.Count)
			if count <= t.opt.CountLimit {
				break
			}
		}
		if err := t.st.checkpoint(); err != nil {
			t.opt.Logger.Printf("disktier: checkpoint after trim_count: %v", err)
		}
		t.reportSizeLocked()
		if !progressed {
			return
		}
	}
}

// removeExpiredLocked deletes every entry whose last_access_time is older
// than MaxCachePeriod.
func (t *Tier[V]) removeExpiredLocked() {
	cutoff := t.opt.Clock.Now().Add(-t.opt.MaxCachePeriod)
	n, err := t.st.deleteExpired(cutoff)
	if err != nil {
		t.opt.Logger.Printf("disktier: remove_expired: %v", err)
		return
	}
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		t.opt.Metrics.Evict(evict.Expiry)
	}
	if err := t.st.checkpoint(); err != nil {
		t.opt.Logger.Printf("disktier: checkpoint after remove_expired: %v", err)
	}
	t.reportSizeLocked()
}

func (t *Tier[V]) reportSizeLocked() {
	count, err := t.st.totalCount()
	if err != nil {
		return
	}
	total, err := t.st.totalSize()
	if err != nil {
		return
	}
	t.opt.Metrics.Size(count, total)
}

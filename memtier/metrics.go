package memtier

import "github.com/objcache/objcache/evict"

// Metrics receives observability callbacks from a Tier. All methods must be
// safe to call concurrently and must not block or call back into the Tier.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason evict.Reason)
	Size(entries int, cost int64)
}

// NoopMetrics discards every callback. It is the default when no Metrics is
// configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                    {}
func (NoopMetrics) Miss()                   {}
func (NoopMetrics) Evict(evict.Reason)      {}
func (NoopMetrics) Size(entries int, cost int64) {}

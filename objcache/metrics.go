package objcache

import (
	"github.com/objcache/objcache/disktier"
	"github.com/objcache/objcache/memtier"
)

// Metrics receives observability callbacks from both tiers plus promotion
// events. Memory and Disk return the narrower, tier-scoped views each tier's
// constructor expects.
type Metrics interface {
	Memory() memtier.Metrics
	Disk() disktier.Metrics
	// Promote is called each time a disk hit is copied back into the
	// memory tier.
	Promote()
}

// NoopMetrics discards every callback. It is the default when no Metrics is
// configured.
type NoopMetrics struct{}

func (NoopMetrics) Memory() memtier.Metrics  { return memtier.NoopMetrics{} }
func (NoopMetrics) Disk() disktier.Metrics   { return disktier.NoopMetrics{} }
func (NoopMetrics) Promote()                 {}

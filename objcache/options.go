package objcache

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/objcache/objcache/disktier"
	"github.com/objcache/objcache/hashing"
	"github.com/objcache/objcache/memtier"
)

// Options configures a HybridCache holding values of type V. Build one with
// DefaultOptions and override only the fields you care about; RootDir,
// AppID, and Codec have no usable default and must always be set.
type Options[V any] struct {
	// RootDir is the parent directory for the cache's own
	// diskcache.<AppID> subdirectory.
	RootDir string
	// AppID namespaces the on-disk subdirectory name.
	AppID string
	// Codec converts stored values to and from bytes for disk persistence.
	Codec disktier.Codec

	// MemoryCostLimit caps the in-memory tier's total cost. Default: 200 MiB.
	MemoryCostLimit uint64
	// MemoryCountLimit caps the in-memory tier's entry count. Default: 0
	// (unlimited).
	MemoryCountLimit uint64
	// AutoPurgeOnMemoryWarning clears the memory tier on a host
	// memory-warning notification. Default: true.
	AutoPurgeOnMemoryWarning bool
	// AutoPurgeOnBackground clears the memory tier when the host enters the
	// background. Default: true.
	AutoPurgeOnBackground bool
	// Events delivers memory-warning / background-entry notifications to
	// the memory tier. Nil disables both auto-purge behaviors.
	Events memtier.EventSource

	// DiskCostLimit caps the disk tier's total stored size. Default: 500 MiB.
	DiskCostLimit uint64
	// DiskCountLimit caps the disk tier's entry count. Default: 0
	// (unlimited).
	DiskCountLimit uint64
	// DiskInlineThreshold is the cost boundary above which a value is
	// spilled to a sidecar file instead of stored inline. Default: 20 KiB.
	DiskInlineThreshold uint64
	// MaxCachePeriod bounds how long a disk entry may sit unread before
	// maintenance expires it. Default: 7 days.
	MaxCachePeriod time.Duration
	// AutoInterval is the period between disk maintenance ticks. Default:
	// 120s.
	AutoInterval time.Duration
	// Workers bounds the disk tier's asynchronous task executor. 0 picks a
	// default based on GOMAXPROCS.
	Workers int

	// Hasher derives sidecar filenames from keys. Default: hashing.Identity,
	// which hex-encodes the key itself and so cannot collide.
	Hasher disktier.Hasher
	// Clock abstracts wall-clock time. Default: the real clock.
	Clock disktier.Clock
	// Metrics receives Hit/Miss/Evict/Size/Promote callbacks. Default:
	// NoopMetrics.
	Metrics Metrics
	// Logger receives diagnostics for disk failures handled internally.
	// Default: log.Default().
	Logger disktier.Logger

	// Loader fetches a value on a GetOrLoad miss against both tiers. Nil
	// means GetOrLoad always fails with ErrNoLoader.
	Loader func(ctx context.Context, key string) (value V, cost uint64, err error)
}

// DefaultOptions returns the documented defaults for everything except
// RootDir, AppID, and Codec. The type parameter matches the HybridCache
// you intend to build, e.g. DefaultOptions[string]().
func DefaultOptions[V any]() Options[V] {
	return Options[V]{
		MemoryCostLimit:          200 * 1024 * 1024,
		MemoryCountLimit:         0,
		AutoPurgeOnMemoryWarning: true,
		AutoPurgeOnBackground:    true,

		DiskCostLimit:       500 * 1024 * 1024,
		DiskCountLimit:      0,
		DiskInlineThreshold: 20 * 1024,
		MaxCachePeriod:      7 * 24 * time.Hour,
		AutoInterval:        120 * time.Second,

		Hasher:  hashing.Identity{},
		Clock:   nil,
		Metrics: NoopMetrics{},
		Logger:  log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (o Options[V]) withDefaults() Options[V] {
	d := DefaultOptions[V]()
	if o.Hasher == nil {
		o.Hasher = d.Hasher
	}
	if o.Metrics == nil {
		o.Metrics = d.Metrics
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.DiskInlineThreshold == 0 {
		o.DiskInlineThreshold = d.DiskInlineThreshold
	}
	if o.MaxCachePeriod == 0 {
		o.MaxCachePeriod = d.MaxCachePeriod
	}
	if o.AutoInterval == 0 {
		o.AutoInterval = d.AutoInterval
	}
	return o
}

func (o Options[V]) memtierOptions() memtier.Options {
	return memtier.Options{
		CostLimit:                o.MemoryCostLimit,
		CountLimit:               o.MemoryCountLimit,
		AutoPurgeOnMemoryWarning: o.AutoPurgeOnMemoryWarning,
		AutoPurgeOnBackground:    o.AutoPurgeOnBackground,
		Events:                   o.Events,
		Metrics:                  o.Metrics.Memory(),
	}
}

func (o Options[V]) disktierOptions() disktier.Options {
	return disktier.Options{
		RootDir:         o.RootDir,
		AppID:           o.AppID,
		CostLimit:       o.DiskCostLimit,
		CountLimit:      o.DiskCountLimit,
		InlineThreshold: o.DiskInlineThreshold,
		MaxCachePeriod:  o.MaxCachePeriod,
		AutoInterval:    o.AutoInterval,
		Workers:         o.Workers,
		Hasher:          o.Hasher,
		Codec:           o.Codec,
		Clock:           o.Clock,
		Metrics:         o.Metrics.Disk(),
		Logger:          o.Logger,
	}
}

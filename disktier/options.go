package disktier

import (
	"log"
	"os"
	"time"

	"github.com/objcache/objcache/hashing"
	"github.com/objcache/objcache/internal/util"
)

const (
	defaultCostLimit      = 500 * 1024 * 1024
	defaultInlineThreshold = 20 * 1024
	defaultMaxCachePeriod  = 7 * 24 * time.Hour
	defaultAutoInterval    = 120 * time.Second
)

// Options configures a Tier.
type Options struct {
	// RootDir is the parent directory in which the tier creates its own
	// diskcache.<AppID> subdirectory. Required.
	RootDir string
	// AppID namespaces the subdirectory name. Required.
	AppID string

	// CostLimit caps the sum of entry sizes the tier will hold on disk. 0
	// disables cost-based trimming. Default: 500 MiB.
	CostLimit uint64
	// CountLimit caps the number of entries the tier will hold. 0 (the
	// default) disables count-based trimming.
	CountLimit uint64
	// InlineThreshold is the cost boundary below which a value is stored as
	// a database blob, and above which it is stored as a sidecar file.
	// Default: 20 KiB.
	InlineThreshold uint64
	// MaxCachePeriod bounds how long an entry may sit unread before periodic
	// maintenance expires it. Default: 7 days.
	MaxCachePeriod time.Duration
	// AutoInterval is the period between maintenance ticks. Default: 120s.
	AutoInterval time.Duration
	// Workers bounds the tier's asynchronous task executor. 0 picks a
	// default based on GOMAXPROCS.
	Workers int

	// Hasher derives sidecar filenames from keys. Default: hashing.Identity.
	Hasher Hasher
	// Codec converts values to/from bytes. Required.
	Codec Codec
	// Clock abstracts wall-clock time. Default: the real clock.
	Clock Clock
	// Metrics receives Hit/Miss/Evict/Size callbacks. Default: NoopMetrics.
	Metrics Metrics
	// Logger receives diagnostics for disk failures handled internally.
	// Default: log.Default().
	Logger Logger
}

// DefaultOptions returns the documented defaults for everything except
// RootDir, AppID, and Codec, which callers must supply.
func DefaultOptions() Options {
	return Options{
		CostLimit:       defaultCostLimit,
		CountLimit:      0,
		InlineThreshold: defaultInlineThreshold,
		MaxCachePeriod:  defaultMaxCachePeriod,
		AutoInterval:    defaultAutoInterval,
		Workers:         util.ReasonableWorkerCount(),
		Hasher:          hashing.Identity{},
		Clock:           realClock{},
		Metrics:         NoopMetrics{},
		Logger:          log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (o Options) withDefaults() Options {
	if o.Workers == 0 {
		o.Workers = util.ReasonableWorkerCount()
	}
	if o.Hasher == nil {
		o.Hasher = hashing.Identity{}
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if o.InlineThreshold == 0 {
		o.InlineThreshold = defaultInlineThreshold
	}
	if o.MaxCachePeriod == 0 {
		o.MaxCachePeriod = defaultMaxCachePeriod
	}
	if o.AutoInterval == 0 {
		o.AutoInterval = defaultAutoInterval
	}
	return o
}

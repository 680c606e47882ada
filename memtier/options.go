package memtier

// Options configures a Tier. The zero value is not usable directly; build
// one through New with the fields you care about set, and let the rest fall
// back to the documented defaults.
type Options struct {
	// CostLimit caps the sum of entry costs the tier will hold. 0 disables
	// cost-based trimming. Default: 200 MiB (209715200).
	CostLimit uint64
	// CountLimit caps the number of entries the tier will hold. 0 (the
	// default) disables count-based trimming.
	CountLimit uint64

	// AutoPurgeOnMemoryWarning clears the tier when EventSource reports a
	// host memory-warning notification. Default: true.
	AutoPurgeOnMemoryWarning bool
	// AutoPurgeOnBackground clears the tier when EventSource reports the
	// host entering the background. Default: true.
	AutoPurgeOnBackground bool

	// Events, if set, is subscribed to at construction time so the tier can
	// honor AutoPurgeOnMemoryWarning / AutoPurgeOnBackground. Nil disables
	// both regardless of the flags above.
	Events EventSource

	// Metrics receives Hit/Miss/Evict/Size callbacks. Default: NoopMetrics.
	Metrics Metrics
}

const defaultCostLimit = 200 * 1024 * 1024

// DefaultOptions returns the documented defaults. Callers typically start
// here and override only the fields they care about.
func DefaultOptions() Options {
	return Options{
		CostLimit:                defaultCostLimit,
		CountLimit:               0,
		AutoPurgeOnMemoryWarning: true,
		AutoPurgeOnBackground:    true,
		Metrics:                  NoopMetrics{},
	}
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

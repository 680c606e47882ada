// Package prom adapts objcache.Metrics to Prometheus counters and gauges,
// labeling every hit/miss/eviction/size callback by which tier produced it.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/objcache/objcache/disktier"
	"github.com/objcache/objcache/evict"
	"github.com/objcache/objcache/memtier"
	"github.com/objcache/objcache/objcache"
)

const (
	tierMemory = "memory"
	tierDisk   = "disk"
)

// Adapter implements objcache.Metrics and exports Prometheus counters and
// gauges labeled by tier. Safe for concurrent use; all Prometheus metric
// types are goroutine-safe.
type Adapter struct {
	hits       *prometheus.CounterVec
	misses     *prometheus.CounterVec
	evicts     *prometheus.CounterVec
	sizeEnt    *prometheus.GaugeVec
	sizeCost   *prometheus.GaugeVec
	promotions prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Cache evictions by tier and reason",
			ConstLabels: constLabels,
		}, []string{"tier", "reason"}),
		sizeEnt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		sizeCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_cost",
			Help:        "Total resident cost by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "promotions_total",
			Help:        "Disk hits promoted into the memory tier",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost, a.promotions)
	return a
}

// Promote increments the promotions counter.
func (a *Adapter) Promote() { a.promotions.Inc() }

// Memory returns the memtier.Metrics view of this adapter, labeled "memory".
func (a *Adapter) Memory() memtier.Metrics { return &tierView{a: a, tier: tierMemory} }

// Disk returns the disktier.Metrics view of this adapter, labeled "disk".
func (a *Adapter) Disk() disktier.Metrics { return &tierView{a: a, tier: tierDisk} }

// tierView binds a tier label to the shared Adapter counters/gauges. It
// satisfies both memtier.Metrics and disktier.Metrics, whose method sets are
// identical by design.
type tierView struct {
	a    *Adapter
	tier string
}

func (v *tierView) Hit()  { v.a.hits.WithLabelValues(v.tier).Inc() }
func (v *tierView) Miss() { v.a.misses.WithLabelValues(v.tier).Inc() }

func (v *tierView) Evict(r evict.Reason) {
	v.a.evicts.WithLabelValues(v.tier, r.String()).Inc()
}

func (v *tierView) Size(entries int, cost int64) {
	v.a.sizeEnt.WithLabelValues(v.tier).Set(float64(entries))
	v.a.sizeCost.WithLabelValues(v.tier).Set(float64(cost))
}

// Compile-time check: ensure Adapter implements objcache.Metrics.
var _ objcache.Metrics = (*Adapter)(nil)

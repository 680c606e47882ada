package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/objcache/objcache/evict"
)

func TestAdapter_SatisfiesBothTierInterfaces(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "objcache", "test", nil)

	mem := a.Memory()
	disk := a.Disk()

	mem.Hit()
	mem.Miss()
	mem.Evict(evict.Count)
	mem.Size(3, 30)

	disk.Hit()
	disk.Evict(evict.Expiry)
	disk.Size(10, 1000)

	a.Promote()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics) == 0 {
		t.Fatal("expected registered metric families, got none")
	}
}

package memtier

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/objcache/objcache/hostevents"
)

func TestSetGet_RoundTrips(t *testing.T) {
	tr := New[string](DefaultOptions())
	tr.Set("a", "1", 10)
	v, ok := tr.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", v, ok)
	}
}

func TestGet_DoesNotPromote(t *testing.T) {
	opt := DefaultOptions()
	opt.CountLimit = 2
	tr := New[int](opt)
	tr.Set("a", 1, 1)
	tr.Set("b", 2, 1)
	// a is now the tail (least-recently-written). Reading it must not save
	// it from eviction, since Get does not count as a write.
	tr.Get("a")
	tr.Set("c", 3, 1)

	if tr.Contains("a") {
		t.Fatal("Get must not promote a, so Set(c) should have evicted it")
	}
	if !tr.Contains("b") || !tr.Contains("c") {
		t.Fatal("b and c should both still be present")
	}
}

func TestCountLimit_EvictsTail(t *testing.T) {
	opt := DefaultOptions()
	opt.CountLimit = 2
	opt.CostLimit = 0
	tr := New[int](opt)
	tr.Set("a", 1, 1)
	tr.Set("b", 2, 1)
	tr.Set("c", 3, 1)

	if tr.TotalCount() != 2 {
		t.Fatalf("TotalCount() = %d, want 2", tr.TotalCount())
	}
	if tr.Contains("a") {
		t.Fatal("a should have been evicted as the oldest entry")
	}
	if tr.Evictions() != 1 {
		t.Fatalf("Evictions() = %d, want 1", tr.Evictions())
	}
}

func TestCostLimit_EvictsUntilSatisfied(t *testing.T) {
	opt := DefaultOptions()
	opt.CountLimit = 0
	opt.CostLimit = 10
	tr := New[int](opt)
	tr.Set("a", 1, 4)
	tr.Set("b", 2, 4)
	// c alone exceeds the remaining budget; both a and b must go.
	tr.Set("c", 3, 9)

	if tr.TotalCost() != 9 {
		t.Fatalf("TotalCost() = %d, want 9", tr.TotalCost())
	}
	if tr.Contains("a") || tr.Contains("b") {
		t.Fatal("a and b should both have been evicted to fit c's cost")
	}
	if !tr.Contains("c") {
		t.Fatal("c fits within the cost limit and must not evict itself")
	}
}

func TestRemove_IsNotAnEviction(t *testing.T) {
	tr := New[int](DefaultOptions())
	tr.Set("a", 1, 1)
	if !tr.Remove("a") {
		t.Fatal("Remove(a) should report it removed an entry")
	}
	if tr.Evictions() != 0 {
		t.Fatalf("Evictions() = %d, want 0 after explicit Remove", tr.Evictions())
	}
	if tr.Remove("a") {
		t.Fatal("second Remove(a) should report nothing removed")
	}
}

func TestClear_EmptiesTier(t *testing.T) {
	tr := New[int](DefaultOptions())
	tr.Set("a", 1, 1)
	tr.Set("b", 2, 1)
	tr.Clear()
	if tr.TotalCount() != 0 || tr.TotalCost() != 0 {
		t.Fatalf("tier not empty after Clear: count=%d cost=%d", tr.TotalCount(), tr.TotalCost())
	}
}

func TestMemoryWarning_ClearsTier(t *testing.T) {
	src := hostevents.New()
	opt := DefaultOptions()
	opt.Events = src
	tr := New[int](opt)
	tr.Set("a", 1, 1)

	src.TriggerMemoryWarning()

	if tr.TotalCount() != 0 {
		t.Fatalf("TotalCount() = %d after memory warning, want 0", tr.TotalCount())
	}
}

func TestBackgroundEntry_ClearsTier(t *testing.T) {
	src := hostevents.New()
	opt := DefaultOptions()
	opt.Events = src
	tr := New[int](opt)
	tr.Set("a", 1, 1)

	src.TriggerBackgroundEntry()

	if tr.TotalCount() != 0 {
		t.Fatalf("TotalCount() = %d after background entry, want 0", tr.TotalCount())
	}
}

func TestAutoPurgeDisabled_DoesNotClear(t *testing.T) {
	src := hostevents.New()
	opt := DefaultOptions()
	opt.Events = src
	opt.AutoPurgeOnMemoryWarning = false
	tr := New[int](opt)
	tr.Set("a", 1, 1)

	src.TriggerMemoryWarning()

	if tr.TotalCount() != 1 {
		t.Fatal("disabling AutoPurgeOnMemoryWarning should keep entries across the notification")
	}
}

func TestConcurrentSetGet_NoRace(t *testing.T) {
	opt := DefaultOptions()
	opt.CountLimit = 64
	tr := New[int](opt)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (j % 26)))
				tr.Set(key, i*1000+j, 1)
				tr.Get(key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

package disktier

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/objcache/objcache/codec/gobcodec"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTier(t *testing.T, configure func(*Options)) *Tier[string] {
	t.Helper()
	opt := DefaultOptions()
	opt.RootDir = t.TempDir()
	opt.AppID = "testapp"
	opt.Codec = gobcodec.Codec{}
	opt.AutoInterval = time.Hour // keep the background tick out of the way
	if configure != nil {
		configure(&opt)
	}
	tr, err := New[string](opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSet_InlineBelowThreshold(t *testing.T) {
	tr := newTestTier(t, nil)
	tr.Set("a", "hello", 5)

	fn, inline, exists, err := tr.st.lookupFilename("a")
	if err != nil {
		t.Fatal(err)
	}
	if !exists || !inline || fn != "" {
		t.Fatalf("lookupFilename(a) = %q, inline=%v, exists=%v; want inline row", fn, inline, exists)
	}

	v, ok := tr.Get("a")
	if !ok || v != "hello" {
		t.Fatalf("Get(a) = %q, %v; want hello, true", v, ok)
	}
}

func TestSet_SidecarAboveThreshold(t *testing.T) {
	tr := newTestTier(t, func(o *Options) { o.InlineThreshold = 1024 })

	big := string(bytes.Repeat([]byte("x"), 40*1024))
	tr.Set("big", big, 40960)

	fn, inline, exists, err := tr.st.lookupFilename("big")
	if err != nil {
		t.Fatal(err)
	}
	if !exists || inline || fn == "" {
		t.Fatalf("lookupFilename(big) = %q, inline=%v, exists=%v; want sidecar row", fn, inline, exists)
	}

	info, err := os.Stat(filepath.Join(tr.st.dir, fn))
	if err != nil {
		t.Fatalf("sidecar file missing: %v", err)
	}
	encoded, _ := gobcodec.Codec{}.Encode(big)
	if info.Size() != int64(len(encoded)) {
		t.Fatalf("sidecar file size = %d, want %d", info.Size(), len(encoded))
	}

	v, ok := tr.Get("big")
	if !ok || v != big {
		t.Fatal("Get(big) did not round-trip through the sidecar file")
	}
}

func TestRemove_DeletesRowAndFile(t *testing.T) {
	tr := newTestTier(t, func(o *Options) { o.InlineThreshold = 10 })
	tr.Set("big", "0123456789ABCDEF", 100)
	fn, _, _, _ := tr.st.lookupFilename("big")

	tr.Remove("big")

	if tr.Contains("big") {
		t.Fatal("big should be gone after Remove")
	}
	if _, err := os.Stat(filepath.Join(tr.st.dir, fn)); !os.IsNotExist(err) {
		t.Fatalf("sidecar file should have been deleted, stat err = %v", err)
	}
}

func TestExpiry_RemovesStaleEntries(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTier(t, func(o *Options) {
		o.Clock = clock
		o.MaxCachePeriod = 24 * time.Hour
		o.InlineThreshold = 10
	})
	tr.Set("stale", "0123456789ABCDEF", 100)
	fn, _, _, _ := tr.st.lookupFilename("stale")

	clock.Advance(25 * time.Hour)

	tr.mu.Lock()
	tr.removeExpiredLocked()
	tr.mu.Unlock()

	if tr.Contains("stale") {
		t.Fatal("stale entry should have expired")
	}
	if _, err := os.Stat(filepath.Join(tr.st.dir, fn)); !os.IsNotExist(err) {
		t.Fatal("sidecar file for the expired entry should be gone")
	}
}

func TestCostTrim_EvictsOldestFirst(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTier(t, func(o *Options) {
		o.Clock = clock
		o.CostLimit = 100
	})

	payload := string(bytes.Repeat([]byte("y"), 40))
	tr.Set("A", payload, 60)
	clock.Advance(time.Second)
	tr.Set("B", payload, 60)
	clock.Advance(time.Second)
	tr.Set("C", payload, 60)

	tr.mu.Lock()
	tr.trimCostLocked()
	tr.mu.Unlock()

	total := tr.TotalCost()
	if total > 100 {
		t.Fatalf("total cost %d exceeds limit of 100 after trim", total)
	}
	if tr.Contains("A") {
		t.Fatal("A, the oldest entry, should have been evicted")
	}
}

func TestClear_RemovesEverything(t *testing.T) {
	tr := newTestTier(t, nil)
	tr.Set("a", "1", 1)
	tr.Set("b", "2", 1)

	tr.Clear()

	if tr.TotalCount() != 0 {
		t.Fatalf("TotalCount() = %d after Clear, want 0", tr.TotalCount())
	}
	if tr.Contains("a") || tr.Contains("b") {
		t.Fatal("entries should be gone after Clear")
	}
}

func TestAsyncSetGet_RoundTrips(t *testing.T) {
	tr := newTestTier(t, nil)

	done := make(chan struct{})
	tr.SetAsync("a", "1", 1, func(key string) {
		if key != "a" {
			t.Errorf("onDone key = %q, want a", key)
		}
		close(done)
	})
	<-done

	got := make(chan string, 1)
	tr.GetAsync("a", func(key string, val string, ok bool) {
		if !ok {
			t.Error("GetAsync reported miss for a")
		}
		got <- val
	})
	if v := <-got; v != "1" {
		t.Fatalf("async Get(a) = %q, want 1", v)
	}
}

// TestReopen_SurvivesProcessRestart simulates a process restart: Close the
// tier, then construct a fresh Tier against the same RootDir/AppID, and
// confirm previously written entries are still readable.
func TestReopen_SurvivesProcessRestart(t *testing.T) {
	root := t.TempDir()
	newTier := func() *Tier[string] {
		opt := DefaultOptions()
		opt.RootDir = root
		opt.AppID = "restart"
		opt.Codec = gobcodec.Codec{}
		opt.AutoInterval = time.Hour
		tr, err := New[string](opt)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return tr
	}

	tr := newTier()
	tr.Set("a", "hello", 5)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tr2 := newTier()
	t.Cleanup(func() { tr2.Close() })

	v, ok := tr2.Get("a")
	if !ok || v != "hello" {
		t.Fatalf("Get(a) after reopen = %q, %v; want hello, true", v, ok)
	}
}

func TestConcurrentSetGet_NoRace(t *testing.T) {
	tr := newTestTier(t, nil)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				key := string(rune('a' + (j % 10)))
				tr.Set(key, key, uint64(i+j))
				tr.Get(key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

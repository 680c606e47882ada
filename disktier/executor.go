package disktier

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// executor runs submitted closures on a bounded number of concurrent
// goroutines. It backs DiskTier's asynchronous Set/Get/Contains/Remove/Clear
// variants; the periodic maintenance tick runs from its own time.AfterFunc
// timer instead.
type executor struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func newExecutor(workers int) *executor {
	if workers < 1 {
		workers = 1
	}
	return &executor{sem: semaphore.NewWeighted(int64(workers))}
}

// submit runs fn on a pool goroutine once a slot is available. It returns
// immediately; the caller is suspended only long enough to spawn the
// goroutine, never for the duration of fn, matching the suspension model
// asynchronous DiskTier operations promise callers.
func (e *executor) submit(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		_ = e.sem.Acquire(context.Background(), 1)
		defer e.sem.Release(1)
		fn()
	}()
}

// close stops accepting new work and waits for in-flight tasks to finish.
func (e *executor) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

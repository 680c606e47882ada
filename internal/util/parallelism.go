package util

import "runtime"

// ReasonableWorkerCount picks a practical default goroutine-pool size based
// on CPU parallelism. Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..256].
// Originally used to size shard counts; reused here to size DiskTier's
// executor pool, which benefits from the same "don't oversubscribe, don't
// starve" heuristic.
func ReasonableWorkerCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n < 1 {
		n = 1
	}
	if n > 256 {
		n = 256
	}
	return n
}

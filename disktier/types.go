package disktier

import (
	"time"

	"github.com/objcache/objcache/evict"
)

// Hasher derives a sidecar filename's stem from a cache key. See package
// hashing for the concrete adapters objcache wires by default.
type Hasher interface {
	Digest(key string) string
}

// Codec converts caller values to and from bytes for disk persistence. See
// package codec/gobcodec and codec/jsoncodec for the concrete adapters.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// Clock abstracts wall-clock time so tests can control aging and expiry
// without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Metrics receives observability callbacks from a Tier. All methods must be
// safe to call concurrently and must not block or call back into the Tier.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason evict.Reason)
	Size(entries int, cost int64)
}

// NoopMetrics discards every callback. It is the default when no Metrics is
// configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                         {}
func (NoopMetrics) Miss()                        {}
func (NoopMetrics) Evict(evict.Reason)           {}
func (NoopMetrics) Size(entries int, cost int64) {}

// Logger receives diagnostic messages for failures that are handled inside
// the tier (disk I/O errors, SQL errors) and therefore never surface to the
// caller. The signature matches the standard library's log.Printf so the
// standard *log.Logger satisfies it directly.
type Logger interface {
	Printf(format string, args ...any)
}

// Package hashing provides Hasher implementations for deriving sidecar
// filenames from cache keys. The core (package objcache) treats the digest
// algorithm as a pluggable collaborator; this package is the set of concrete
// adapters callers wire in.
package hashing

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"

	"github.com/objcache/objcache/internal/util"
)

// Identity hex-encodes the raw key bytes. It is collision-free by
// construction (distinct keys never produce the same digest) and is the
// default Hasher wired by objcache.New, resolving the filename-collision
// risk flagged against digest-based naming: no two keys can ever collide
// on a sidecar filename because the filename IS the key, hex-escaped.
//
// The one cost is filename length: callers with very long keys and a
// filesystem path-length limit should prefer FNV or XX below instead.
type Identity struct{}

// Digest returns the hex encoding of key's UTF-8 bytes.
func (Identity) Digest(key string) string {
	return hex.EncodeToString([]byte(key))
}

// FNV hashes keys with 64-bit FNV-1a, the algorithm the teacher cache used
// for shard selection. Fast and short, but two keys can collide on the same
// digest; callers that pick FNV accept that a colliding write overwrites a
// different key's sidecar file (see DiskStore.write).
type FNV struct{}

// Digest returns the hex encoding of the FNV-1a hash of key.
func (FNV) Digest(key string) string {
	h := util.Fnv64a(key)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// XX hashes keys with xxhash64. Faster than FNV on long keys and has better
// avalanche behavior, but remains a 64-bit digest and so carries the same
// collision caveat as FNV.
type XX struct{}

// Digest returns the hex encoding of the xxhash64 digest of key.
func (XX) Digest(key string) string {
	h := xxhash.Sum64String(key)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// Package keys computes stable 64 bit keys for fetch requests, used to
// coalesce identical requests and to index cached payloads.
package keys

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// cacheKeyHasher implements a key hash using Hash64 for computing cache keys in a stable way.
type cacheKeyHasher struct {
	hasher *xxhash.Digest
}

// NewCacheKeyHasher returns a hasher for string values.
func NewCacheKeyHasher(xhash *xxhash.Digest) *cacheKeyHasher {
	return &cacheKeyHasher{hasher: xhash}
}

// WriteString writes value followed by a separator, so that ("ab", "c") and
// ("a", "bc") hash differently.
func (c *cacheKeyHasher) WriteString(value string) error {
	// xxhash never fails to write
	_, _ = c.hasher.WriteString(value)
	_, _ = c.hasher.Write([]byte{0})

	return nil
}

// Key returns the stableCacheKey that this key hash defines.
func (c cacheKeyHasher) Key() StableCacheKey {
	return StableCacheKey{
		stableSum: c.hasher.Sum64(),
	}
}

type StableCacheKey struct {
	stableSum uint64
}

// ToUInt64 returns the cache key in the form of a stable uint64 value.
func (key StableCacheKey) ToUInt64() uint64 {
	return key.stableSum
}

func (key StableCacheKey) String() string {
	return strconv.FormatUint(key.stableSum, 16)
}

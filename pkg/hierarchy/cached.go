package hierarchy

import (
	"github.com/l3aro/go-bytecode-flow/pkg/cache"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// DefaultCacheSize bounds the number of memoized pairs.
const DefaultCacheSize = 4096

// Cached memoizes the answers of another oracle in an LRU cache. It is safe
// for concurrent use when the wrapped oracle is.
type Cached struct {
	oracle value.Oracle
	lru    *cache.LRU[string]
}

// NewCached wraps oracle. A size below 1 uses DefaultCacheSize.
func NewCached(oracle value.Oracle, size int) *Cached {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &Cached{
		oracle: oracle,
		lru:    cache.New(cache.Options[string]{MaxSize: size}),
	}
}

// CommonSupertype implements value.Oracle.
func (c *Cached) CommonSupertype(a, b string) string {
	key := a + "\x00" + b
	if s, ok := c.lru.Get(key); ok {
		return s
	}
	s := c.oracle.CommonSupertype(a, b)
	c.lru.Set(key, s)
	return s
}

// Stats reports hits and misses of the memo table.
func (c *Cached) Stats() cache.Stats { return c.lru.Stats() }

var (
	_ value.Oracle = (*Hierarchy)(nil)
	_ value.Oracle = (*Cached)(nil)
)

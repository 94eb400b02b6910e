package template

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"ledgerline/policyforge/pkg/answers"
)

// DefaultCacheSize is the number of compiled bodies kept when no size is given.
const DefaultCacheSize = 1024

// Cache holds compiled templates keyed by the SHA-256 of their source. When
// full, the least recently used entry is evicted. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, *Template]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// NewCache creates a cache holding at most size templates.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Template](size)
	if err != nil {
		// lru.New only rejects non-positive sizes.
		panic(err)
	}
	return &Cache{entries: entries}
}

// Key returns the cache key for a template source.
func Key(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Compile returns the compiled template for src, compiling it on a miss.
func (c *Cache) Compile(src string) *Template {
	key := Key(src)
	if tmpl, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return tmpl
	}
	c.misses.Add(1)

	// Concurrent misses on one key may compile twice; the first one stored wins.
	tmpl := Compile(src)
	if prev, ok, _ := c.entries.PeekOrAdd(key, tmpl); ok {
		return prev
	}
	return tmpl
}

// Render compiles (or reuses) src and renders it.
func (c *Cache) Render(src string, vars answers.Set) string {
	return c.Compile(src).Render(vars)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Size:   c.entries.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

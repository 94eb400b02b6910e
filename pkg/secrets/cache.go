package secrets

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value   string
	expires time.Time
}

// cache holds resolved values for a fixed TTL. When full, the entry closest
// to expiry is evicted.
type cache struct {
	ttl  time.Duration
	max  int
	now  func() time.Time
	mu   sync.Mutex
	data map[string]cacheEntry
}

func newCache(ttl time.Duration, max int) *cache {
	return &cache{ttl: ttl, max: max, now: time.Now, data: make(map[string]cacheEntry)}
}

func (c *cache) enabled() bool { return c.ttl > 0 && c.max > 0 }

func (c *cache) get(name string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[name]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.data, name)
		return "", false
	}
	return e.value, true
}

func (c *cache) put(name, value string) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[name]; !ok && len(c.data) >= c.max {
		var victim string
		var soonest time.Time
		for k, e := range c.data {
			if victim == "" || e.expires.Before(soonest) {
				victim, soonest = k, e.expires
			}
		}
		delete(c.data, victim)
	}
	c.data[name] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
}

func (c *cache) clear() {
	c.mu.Lock()
	c.data = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

package wasifs

import (
	"os"
	"strings"
	"sync"
	"time"
)

// lookupCache remembers which union layer served a path, and which paths no
// layer has.
type lookupCache struct {
	hits        map[string]*hitEntry
	misses      map[string]time.Time
	mu          sync.RWMutex
	ttl         time.Duration
	negativeTTL time.Duration
	maxEntries  int
	enabled     bool
}

type hitEntry struct {
	info    os.FileInfo
	layer   int
	expires time.Time
}

func newLookupCache(enabled bool, ttl, negativeTTL time.Duration, maxEntries int) *lookupCache {
	if !enabled {
		return &lookupCache{enabled: false}
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &lookupCache{
		hits:        make(map[string]*hitEntry),
		misses:      make(map[string]time.Time),
		ttl:         ttl,
		negativeTTL: negativeTTL,
		maxEntries:  maxEntries,
		enabled:     true,
	}
}

// get returns the cached layer for name. found is false for a cached miss.
func (c *lookupCache) get(name string) (info os.FileInfo, layer int, found, ok bool) {
	if !c.enabled {
		return nil, -1, false, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	if e, hit := c.hits[name]; hit && now.Before(e.expires) {
		return e.info, e.layer, true, true
	}
	if expires, miss := c.misses[name]; miss && now.Before(expires) {
		return nil, -1, false, true
	}
	return nil, -1, false, false
}

func (c *lookupCache) putHit(name string, info os.FileInfo, layer int) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.hits) >= c.maxEntries {
		evictOldest(c.hits, func(e *hitEntry) time.Time { return e.expires })
	}
	c.hits[name] = &hitEntry{info: info, layer: layer, expires: time.Now().Add(c.ttl)}
}

func (c *lookupCache) putMiss(name string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.misses) >= c.maxEntries {
		evictOldest(c.misses, func(t time.Time) time.Time { return t })
	}
	c.misses[name] = time.Now().Add(c.negativeTTL)
}

// invalidate drops name, everything below it and all of its ancestors.
// Creating /a/b/c in an upper layer can change the answer for /a and /a/b.
func (c *lookupCache) invalidate(name string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := strings.TrimSuffix(name, "/") + "/"
	for p := range c.hits {
		if p == name || strings.HasPrefix(p, prefix) || isAncestor(p, name) {
			delete(c.hits, p)
		}
	}
	for p := range c.misses {
		if p == name || strings.HasPrefix(p, prefix) || isAncestor(p, name) {
			delete(c.misses, p)
		}
	}
}

func (c *lookupCache) clear() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = make(map[string]*hitEntry)
	c.misses = make(map[string]time.Time)
}

// Stats returns cache statistics
func (c *lookupCache) Stats() CacheStats {
	if !c.enabled {
		return CacheStats{Enabled: false}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Enabled:         true,
		Entries:         len(c.hits),
		NegativeEntries: len(c.misses),
		MaxEntries:      c.maxEntries,
		TTL:             c.ttl,
		NegativeTTL:     c.negativeTTL,
	}
}

// CacheStats describes the lookup cache of a union.
type CacheStats struct {
	Enabled         bool
	Entries         int
	NegativeEntries int
	MaxEntries      int
	TTL             time.Duration
	NegativeTTL     time.Duration
}

func isAncestor(dir, name string) bool {
	return dir == "/" || strings.HasPrefix(name, strings.TrimSuffix(dir, "/")+"/")
}

func evictOldest[V any](m map[string]V, expires func(V) time.Time) {
	var oldest string
	var oldestTime time.Time
	for p, v := range m {
		if t := expires(v); oldest == "" || t.Before(oldestTime) {
			oldest = p
			oldestTime = t
		}
	}
	if oldest != "" {
		delete(m, oldest)
	}
}

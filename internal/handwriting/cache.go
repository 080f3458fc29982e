package handwriting

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// DefaultCacheSize bounds the number of remembered canvases.
const DefaultCacheSize = 128

// Cache remembers recognition results keyed by sha256(model + ":" + png).
// Identical drawings are common when a user redraws after a clear, so a
// hit skips the network round trip. Only non-empty results are stored.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]string
	order   []string // insertion order, oldest first
	max     int
	model   string
	log     *logger.Logger
	hits    int64
	misses  int64
}

// NewCache creates a cache holding at most max entries. The model name is
// part of every key so switching models starts cold.
func NewCache(model string, max int, log *logger.Logger) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string][]string),
		max:     max,
		model:   model,
		log:     log,
	}
}

// Get returns a copy of the cached candidates for png.
func (c *Cache) Get(png []byte) ([]string, bool) {
	key := c.hashKey(png)

	c.mu.Lock()
	defer c.mu.Unlock()

	cands, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.log.Debug("cache hit: %s (%d candidates)", key[:12], len(cands))
	return append([]string(nil), cands...), true
}

// Put stores candidates for png. Empty results are ignored.
func (c *Cache) Put(png []byte, cands []string) {
	if len(cands) == 0 {
		return
	}
	key := c.hashKey(png)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = append([]string(nil), cands...)

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.log.Debug("cache store: %s (%d entries)", key[:12], len(c.entries))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]string)
	c.order = nil
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
	c.log.Debug("cache cleared")
}

func (c *Cache) hashKey(png []byte) string {
	h := sha256.New()
	h.Write([]byte(c.model + ":"))
	h.Write(png)
	return hex.EncodeToString(h.Sum(nil))
}

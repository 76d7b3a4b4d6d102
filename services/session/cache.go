package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/quorumhq/chatgate/models"
)

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	session    *models.Session
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isStale checks if the cache entry has outlived the cache TTL
func (e *cacheEntry) isStale(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// Cache is an in-memory LRU cache with TTL over hot session tokens.
// Thread-safe implementation using sync.Mutex. Presence in the cache
// never implies validity: Get drops sessions past their own ExpiresAt,
// and the verifier re-checks expiry regardless. Put and Get copy the
// session, so callers can mutate what they hold without racing readers
// of the cached instance; updates land via Invalidate+Put.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry // keyed by token
	lruList *list.List             // Doubly linked list for LRU tracking
	maxSize int                    // Maximum number of entries
	ttl     time.Duration          // Time-to-live for entries
	hits    uint64                 // Cache hit counter
	misses  uint64                 // Cache miss counter
}

// NewCache creates a new Cache with specified max size and TTL
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a session from cache.
// Returns nil if not cached, stale, or the session itself has expired.
func (c *Cache) Get(token string, now time.Time) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[token]
	if !exists || entry.isStale(c.ttl) || entry.session.IsExpired(now) {
		c.misses++
		if exists {
			c.removeEntry(token)
		}
		return nil
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	copied := *entry.session
	return &copied
}

// Put stores a copy of the session in cache
func (c *Cache) Put(session *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *session

	if entry, exists := c.entries[session.Token]; exists {
		entry.session = &copied
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		session:    &copied,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(session.Token)
	c.entries[session.Token] = entry
}

// Invalidate removes a cached session
func (c *Cache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(token)
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *Cache) removeEntry(token string) {
	if entry, exists := c.entries[token]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, token)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *Cache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		token := backElement.Value.(string)
		c.lruList.Remove(backElement)
		delete(c.entries, token)
	}
}

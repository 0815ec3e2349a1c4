package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cyp0633/icalsync/ical"
)

// cacheEntry is one cached expansion result.
type cacheEntry struct {
	occurrences []*ical.Event
	expiresAt   time.Time
	accessedAt  time.Time
}

// ExpansionCache memoizes expansion results. Since expansion is pure, a
// cached result is valid until its inputs change, which the key captures;
// the TTL exists only to bound memory on churning inputs.
type ExpansionCache struct {
	entries         map[string]*cacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// CacheConfig holds configuration for the expansion cache.
type CacheConfig struct {
	TTL             time.Duration // how long entries stay valid
	MaxEntries      int           // maximum entries before eviction
	CleanupInterval time.Duration // how often expired entries are swept
}

// DefaultCacheConfig provides sensible defaults.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewExpansionCache creates a cache and starts its cleanup goroutine.
func NewExpansionCache(config CacheConfig) *ExpansionCache {
	cache := &ExpansionCache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go cache.cleanupLoop()
	return cache
}

// expansionKey hashes everything an expansion depends on: the master's
// identity and recurrence inputs, the query range, and the override set
// (key plus revision, so an edited override invalidates the entry).
func expansionKey(master *ical.Event, rangeStart, rangeEnd time.Time, overrides map[string]*ical.Event) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(master.UID)
	write(master.Start.String())
	fmt.Fprintf(h, "%d;", master.Sequence)
	if master.RRule != nil {
		write(master.RRule.String())
	}
	for _, rdate := range master.RDates {
		write(rdate.String())
	}
	for _, exdate := range master.ExDates {
		write(exdate.String())
	}
	write(rangeStart.UTC().Format(time.RFC3339))
	write(rangeEnd.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		override := overrides[key]
		fmt.Fprintf(h, "%s=%s/%d;", key, override.Start.String(), override.Sequence)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached result if present and unexpired.
func (c *ExpansionCache) Get(key string) ([]*ical.Event, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	c.mutex.Lock()
	entry.accessedAt = now
	c.mutex.Unlock()
	return entry.occurrences, true
}

// Set stores an expansion result.
func (c *ExpansionCache) Set(key string, occurrences []*ical.Event) {
	now := time.Now()
	entry := &cacheEntry{
		occurrences: occurrences,
		expiresAt:   now.Add(c.ttl),
		accessedAt:  now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.evict()
	}
}

// evict removes expired entries, then the least recently accessed entries
// until the cache is back under its limit. Caller holds the write lock.
func (c *ExpansionCache) evict() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAccess := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAccess = append(byAccess, keyAccess{key: key, accessedAt: entry.accessedAt})
	}
	sort.Slice(byAccess, func(i, j int) bool {
		return byAccess[i].accessedAt.Before(byAccess[j].accessedAt)
	})
	for i := 0; i < len(byAccess) && len(c.entries) > c.maxEntries; i++ {
		delete(c.entries, byAccess[i].key)
	}
}

func (c *ExpansionCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.evict()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache.
func (c *ExpansionCache) Close() {
	close(c.stopCleanup)
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Stats reports cache occupancy.
func (c *ExpansionCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := CacheStats{TotalEntries: len(c.entries)}
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			stats.ExpiredEntries++
		}
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries
	return stats
}

// CacheStats provides information about cache occupancy.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

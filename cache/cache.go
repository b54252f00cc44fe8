// Package cache holds fetched datasets with a per-entry TTL, LRU-bounded.
// Entries also carry the generation they were stored under; bumping the
// generation invalidates everything at once.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"pricecmp/config"
	"pricecmp/model"
)

const (
	KindVendor     = "vendor"
	KindVendorList = "vendor_list"
)

type Entry struct {
	Dataset    model.Dataset
	Kind       string
	Generation uint64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type Cache struct {
	mu         sync.RWMutex
	items      map[string]*list.Element
	order      *list.List
	maxEntries int
	generation uint64
	enabled    bool
	clock      clock.Clock

	hits   int64
	misses int64
}

type cacheItem struct {
	key   string
	entry Entry
}

func New(cfg *config.CacheConfig, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		enabled:    !cfg.Disabled,
		clock:      clk,
	}
}

func (c *Cache) Get(key string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	item := elem.Value.(*cacheItem)
	if c.staleLocked(item.entry) {
		c.remove(key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	entry := item.entry
	return &entry, true
}

// Put stores entry under key for ttl.
func (c *Cache) Put(key string, entry Entry, ttl time.Duration) {
	if !c.enabled || ttl <= 0 {
		return
	}

	now := c.clock.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry.Generation = c.generation

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheItem).entry = entry
		return
	}

	if c.order.Len() >= c.maxEntries {
		c.evict()
	}

	item := &cacheItem{key: key, entry: entry}
	elem := c.order.PushFront(item)
	c.items[key] = elem
}

// Invalidate bumps the generation so every stored entry reads as a miss.
func (c *Cache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Cleanup drops expired and superseded entries and reports how many went.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.items {
		if c.staleLocked(elem.Value.(*cacheItem).entry) {
			c.order.Remove(elem)
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Stats() (size int, hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len(), c.hits, c.misses
}

func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) Healthy() bool {
	defer func() { recover() }()
	c.mu.RLock()
	_ = c.order.Len()
	c.mu.RUnlock()
	return true
}

func (c *Cache) staleLocked(e Entry) bool {
	return !c.clock.Now().Before(e.ExpiresAt) || e.Generation != c.generation
}

func (c *Cache) remove(key string) {
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

func (c *Cache) evict() {
	back := c.order.Back()
	if back == nil {
		return
	}
	item := back.Value.(*cacheItem)
	c.order.Remove(back)
	delete(c.items, item.key)
}

func MakeCacheKey(kind string, platform model.Platform, code string) string {
	raw := struct {
		Kind     string `json:"k"`
		Platform string `json:"p"`
		Code     string `json:"c"`
	}{kind, string(platform), code}
	data, _ := json.Marshal(raw)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

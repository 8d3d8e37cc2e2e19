// Package cache holds decoded document content in memory, bounded by entry
// count and age.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

const (
	DefaultCapacity = 100
	DefaultTTL      = 30 * time.Minute
)

// Config configures a ContentCache. Zero values select the defaults.
type Config struct {
	Capacity int
	TTL      time.Duration
	// Now is the clock used for entry ages. Defaults to time.Now.
	Now func() time.Time
	// OnEvict is called with the id of every entry dropped by capacity or
	// age, after the cache lock is released. Remove and Clear do not call it.
	OnEvict func(id string)
	Logger  *slog.Logger
}

type entry struct {
	id       string
	content  models.Content
	storedAt time.Time
}

// ContentCache maps document ids to content. Eviction is FIFO by first
// insertion: overwriting an id refreshes its timestamp but keeps its place
// in the eviction order. Safe for concurrent use.
type ContentCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(id string)
	logger   *slog.Logger
}

// New creates a ContentCache.
func New(cfg Config) *ContentCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ContentCache{
		entries:  make(map[string]*list.Element, cfg.Capacity),
		order:    list.New(),
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		onEvict:  cfg.OnEvict,
		logger:   cfg.Logger.With("component", "content-cache"),
	}
}

// Get returns the content for id. An entry whose age has reached the TTL is
// removed and reported as a miss.
func (c *ContentCache) Get(id string) (models.Content, bool) {
	c.mu.Lock()
	el, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return models.Content{}, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.storedAt) < c.ttl {
		c.mu.Unlock()
		return e.content, true
	}
	c.removeElement(el)
	c.mu.Unlock()

	c.logger.Debug("Cache entry expired.", "documentId", id)
	c.evicted(id)
	return models.Content{}, false
}

// Set stores content for id. Inserting a new id at capacity evicts the
// oldest-inserted entry first.
func (c *ContentCache) Set(id string, content models.Content) {
	c.mu.Lock()
	now := c.now()
	if el, ok := c.entries[id]; ok {
		e := el.Value.(*entry)
		e.content = content
		e.storedAt = now
		c.mu.Unlock()
		return
	}
	var dropped []string
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.removeElement(oldest)
		dropped = append(dropped, oldest.Value.(*entry).id)
	}
	c.entries[id] = c.order.PushBack(&entry{id: id, content: content, storedAt: now})
	c.mu.Unlock()

	for _, evictedID := range dropped {
		c.logger.Debug("Cache full, evicted oldest entry.", "evictedId", evictedID)
		c.evicted(evictedID)
	}
}

// Remove deletes the entry for id, if any.
func (c *ContentCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		c.removeElement(el)
	}
}

// Clear deletes every entry.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Size reports the number of stored entries, expired or not.
func (c *ContentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *ContentCache) evicted(id string) {
	if c.onEvict != nil {
		c.onEvict(id)
	}
}

func (c *ContentCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).id)
}

package api

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	payload    any
	generation uint64
	stale      bool
	tags       []Tag
}

// Cache is the response cache and invalidation layer. Entries are keyed
// by (kind, id|LIST) and carry the set of tags they provide; a mutation
// invalidates by tag, marking intersecting entries stale so the next
// access refetches. The store is LRU-bounded: entries nothing has read
// in a while are evicted outright, which is the cache's garbage
// collection.
type Cache struct {
	mu    sync.Mutex
	store *lru.Cache[Tag, *cacheEntry]
	index map[Tag]map[Tag]struct{}
}

// NewCache creates a cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	c := &Cache{index: make(map[Tag]map[Tag]struct{})}
	store, err := lru.NewWithEvict[Tag, *cacheEntry](size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

// onEvict drops the evicted key from the tag index. The LRU only runs
// callbacks inside operations already holding c.mu, so no extra locking.
func (c *Cache) onEvict(key Tag, e *cacheEntry) {
	for _, tag := range e.tags {
		if keys, ok := c.index[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.index, tag)
			}
		}
	}
}

// Get returns the cached payload and its generation when the entry
// exists and is fresh.
func (c *Cache) Get(key Tag) (any, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(key)
	if !ok || e.stale {
		return nil, 0, false
	}
	return e.payload, e.generation, true
}

// Put stores a result under key, registering the tags it provides. An
// overwrite bumps the generation counter. Returns the new generation.
func (c *Cache) Put(key Tag, payload any, provides []Tag) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := uint64(1)
	if prev, ok := c.store.Peek(key); ok {
		gen = prev.generation + 1
		c.unindexLocked(key, prev.tags)
	}

	e := &cacheEntry{payload: payload, generation: gen, tags: provides}
	c.store.Add(key, e)
	for _, tag := range provides {
		keys, ok := c.index[tag]
		if !ok {
			keys = make(map[Tag]struct{})
			c.index[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return gen
}

// Invalidate marks every entry providing any of the given tags as
// stale. Entries of unrelated resource kinds are never touched: a tag
// carries its kind, so the operation is a pure function of the tag set.
func (c *Cache) Invalidate(tags []Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tag := range tags {
		for key := range c.index[tag] {
			if e, ok := c.store.Peek(key); ok {
				e.stale = true
			}
		}
	}
}

// Len returns the number of resident entries, stale or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Purge empties the cache and its tag index.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
	c.index = make(map[Tag]map[Tag]struct{})
}

func (c *Cache) unindexLocked(key Tag, tags []Tag) {
	for _, tag := range tags {
		if keys, ok := c.index[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.index, tag)
			}
		}
	}
}

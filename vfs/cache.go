package vfs

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached subtree listings.
const DefaultCacheSize = 256

// dirCache lazily mirrors directory listings per subtree. The first
// access to a directory enumerates the store once; later accesses reuse
// the cached listing until a mutation anywhere under that subtree
// invalidates it.
type dirCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, []Entry]
}

func newDirCache(size int) *dirCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New[string, []Entry](size)
	return &dirCache{entries: c}
}

func (c *dirCache) get(path string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(path)
}

func (c *dirCache) put(path string, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(path, entries)
}

// invalidate drops the listing of the directory containing path and of
// every cached directory underneath path. Create/rename/delete all
// funnel through here so a follow-up read never observes a stale tree.
func (c *dirCache) invalidate(path string) {
	parent, _ := Split(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(parent)
	for _, key := range c.entries.Keys() {
		if isUnder(key, path) {
			c.entries.Remove(key)
		}
	}
}

func (c *dirCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

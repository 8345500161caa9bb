package imaging

import (
	"sync"
	"time"
)

// PageKey identifies one rendering of one page.
type PageKey struct {
	Path  string
	Page  int
	Scale float64
}

// PageCache keeps rendered page images in memory so repeated requests for the
// same page skip the rasterizer.
//
// The cache stores encoded PNG bytes keyed by path, page index and scale. When
// more than limit entries are stored the oldest entry is dropped. A limit of
// zero or less means unbounded. Stamp drops a document's pages once its file
// changes.
//
// PageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewPageCache(32)
//	png, err := cache.Load(imaging.PageKey{Path: path, Page: 0, Scale: 2}, func() ([]byte, error) {
//	    return doc.RenderPNG(ctx, 0, 2)
//	})
type PageCache struct {
	mu     sync.RWMutex
	pages  map[PageKey][]byte
	order  []PageKey
	limit  int
	stamps map[string]time.Time
}

// NewPageCache creates an empty cache holding at most limit pages.
func NewPageCache(limit int) *PageCache {
	return &PageCache{
		pages:  make(map[PageKey][]byte),
		limit:  limit,
		stamps: make(map[string]time.Time),
	}
}

// Get returns the cached bytes for key.
func (c *PageCache) Get(key PageKey) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.pages[key]
	return data, ok
}

// Put stores data under key, dropping the oldest entries beyond the limit.
func (c *PageCache) Put(key PageKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pages[key]; !ok {
		c.order = append(c.order, key)
	}
	c.pages[key] = data
	for c.limit > 0 && len(c.order) > c.limit {
		delete(c.pages, c.order[0])
		c.order = c.order[1:]
	}
}

// Load returns the cached bytes for key or calls render and caches its
// result. Render errors are returned and nothing is cached.
//
// Two goroutines missing on the same key may both render; the last result
// wins.
func (c *PageCache) Load(key PageKey, render func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}
	data, err := render()
	if err != nil {
		return nil, err
	}
	c.Put(key, data)
	return data, nil
}

// Evict removes every cached page of the document at path.
func (c *PageCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, k := range c.order {
		if k.Path == path {
			delete(c.pages, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
}

// Stamp records the modification time of the document at path. When it
// differs from the time recorded before, the document's cached pages are
// evicted and Stamp reports true.
func (c *PageCache) Stamp(path string, modTime time.Time) bool {
	c.mu.Lock()
	prev, seen := c.stamps[path]
	c.stamps[path] = modTime
	c.mu.Unlock()

	if seen && !prev.Equal(modTime) {
		c.Evict(path)
		return true
	}
	return false
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

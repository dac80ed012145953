package imagecache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/infra/images"
)

const defaultMemoryMaxBytes = 64 << 20

// MemoryCache keeps fetched images in process memory with per-entry expiry.
// The total payload is capped; the oldest entries go first once it is reached.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	size     int64
	maxBytes int64
	now      func() time.Time
}

type memoryEntry struct {
	img      export.Image
	expires  time.Time
	storedAt time.Time
}

// NewMemoryCache constructs an empty cache holding at most maxBytes of image data.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = defaultMemoryMaxBytes
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), maxBytes: maxBytes, now: time.Now}
}

// Get returns a live entry; expired entries are evicted on read.
func (c *MemoryCache) Get(_ context.Context, uri string) (export.Image, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[uri]
	if !ok {
		return export.Image{}, false, nil
	}
	if entry.expired(c.now()) {
		c.deleteLocked(uri)
		return export.Image{}, false, nil
	}
	return entry.img, true, nil
}

// Set stores an image. A non-positive ttl never expires. Images larger than
// the whole cache are not stored.
func (c *MemoryCache) Set(_ context.Context, uri string, img export.Image, ttl time.Duration) error {
	n := int64(len(img.Data))
	if n > c.maxBytes {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	entry := memoryEntry{img: img, storedAt: now}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	c.deleteLocked(uri)
	if c.size+n > c.maxBytes {
		c.evictLocked(now, n)
	}
	c.entries[uri] = entry
	c.size += n
	return nil
}

// Len reports the number of cached images.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size reports the cached payload in bytes.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// evictLocked drops expired entries, then the oldest ones, until n more bytes fit.
func (c *MemoryCache) evictLocked(now time.Time, n int64) {
	for uri, entry := range c.entries {
		if entry.expired(now) {
			c.deleteLocked(uri)
		}
	}
	for c.size+n > c.maxBytes && len(c.entries) > 0 {
		var (
			oldest   string
			oldestAt time.Time
			found    bool
		)
		for uri, entry := range c.entries {
			if !found || entry.storedAt.Before(oldestAt) {
				oldest, oldestAt, found = uri, entry.storedAt, true
			}
		}
		c.deleteLocked(oldest)
	}
}

func (c *MemoryCache) deleteLocked(uri string) {
	if entry, ok := c.entries[uri]; ok {
		c.size -= int64(len(entry.img.Data))
		delete(c.entries, uri)
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

var _ images.Cache = (*MemoryCache)(nil)

package cache

import (
	"sync"
	"time"

	"github.com/skyroutes/flightdeck/internal/util"
	"github.com/skyroutes/flightdeck/internal/util/compression"
)

// PageEntry is one cached rendered page. Body is stored compressed.
type PageEntry struct {
	Body        []byte
	ETag        string
	ContentType string
	Tags        []string
	StoredAt    time.Time
}

// PageCache holds rendered page bodies keyed by path, with a tag index so
// a commit can invalidate every page derived from the same content.
type PageCache struct {
	pages *Cache[string, *PageEntry]

	mu    sync.Mutex
	byTag map[string]map[string]struct{}

	compressor compression.Compressor
}

func NewPageCache() *PageCache {
	return &PageCache{
		pages:      NewCache[string, *PageEntry](),
		byTag:      make(map[string]map[string]struct{}),
		compressor: compression.ZstdCompressor{},
	}
}

// Put stores a rendered page under path, indexed by tags.
func (c *PageCache) Put(path, contentType string, body []byte, tags ...string) error {
	compressed, err := c.compressor.Compress(body)
	if err != nil {
		return err
	}

	c.pages.Set(path, &PageEntry{
		Body:        compressed,
		ETag:        util.ContentHash(body),
		ContentType: contentType,
		Tags:        tags,
		StoredAt:    time.Now().UTC(),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		if c.byTag[tag] == nil {
			c.byTag[tag] = make(map[string]struct{})
		}
		c.byTag[tag][path] = struct{}{}
	}
	return nil
}

// Get returns the decompressed page body for path.
func (c *PageCache) Get(path string) ([]byte, *PageEntry, bool) {
	entry, ok := c.pages.Get(path)
	if !ok {
		return nil, nil, false
	}

	body, err := c.compressor.Decompress(entry.Body)
	if err != nil {
		// A corrupt entry behaves as a miss and is dropped.
		c.InvalidatePath(path)
		return nil, nil, false
	}
	return body, entry, true
}

// InvalidatePath drops the page at path and unindexes its tags.
func (c *PageCache) InvalidatePath(path string) {
	entry, ok := c.pages.Get(path)
	c.pages.Delete(path)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range entry.Tags {
		delete(c.byTag[tag], path)
		if len(c.byTag[tag]) == 0 {
			delete(c.byTag, tag)
		}
	}
}

// InvalidateTag drops every page indexed under tag and returns how many
// were dropped.
func (c *PageCache) InvalidateTag(tag string) int {
	c.mu.Lock()
	paths := make([]string, 0, len(c.byTag[tag]))
	for path := range c.byTag[tag] {
		paths = append(paths, path)
	}
	c.mu.Unlock()

	for _, path := range paths {
		c.InvalidatePath(path)
	}
	return len(paths)
}

// Clear drops everything.
func (c *PageCache) Clear() {
	c.pages.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTag = make(map[string]map[string]struct{})
}

func (c *PageCache) Len() int {
	return c.pages.Len()
}

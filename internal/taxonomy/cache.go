package taxonomy

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Cache defaults.
const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Cache keeps dereferenced term entries keyed by term link. Values are cloned
// on the way in and out so callers may mutate what they receive.
type Cache struct {
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewCache constructs a cache with the given expiration (DefaultExpiration when zero).
func NewCache(expiration time.Duration, logger *slog.Logger) *Cache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Cache{cache: gocache.New(expiration, DefaultCleanupInterval), logger: logger}
}

// Get returns the cached entries for link.
func (c *Cache) Get(link string) ([]map[string]any, bool) {
	value, found := c.cache.Get(link)
	if !found {
		return nil, false
	}
	entries, ok := value.([]map[string]any)
	if !ok {
		c.logger.Error("taxonomy.cache.type_mismatch", "link", link)
		return nil, false
	}
	c.logger.Debug("taxonomy.cache.hit", "link", link)
	return cloneEntries(entries), true
}

// Set stores entries for link with the default expiration.
func (c *Cache) Set(link string, entries []map[string]any) {
	c.cache.Set(link, cloneEntries(entries), gocache.DefaultExpiration)
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	c.cache.Flush()
}

// Len reports the number of cached links.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

func cloneEntries(entries []map[string]any) []map[string]any {
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = domain.CloneDocument(e)
	}
	return out
}

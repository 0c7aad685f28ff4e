package enrich

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	instructions string
	source       string
	profile      Profile
}

// Cache memoises a Gateway for the lifetime of one synthesis run.
// Concurrent identical requests share a single backend call, and empty
// results are remembered as well.
type Cache struct {
	next Gateway

	mu      sync.RWMutex
	entries map[cacheKey]string
	group   singleflight.Group
}

// NewCache wraps next.
func NewCache(next Gateway) *Cache {
	return &Cache{next: next, entries: make(map[cacheKey]string)}
}

// Rewrite implements Gateway.
func (c *Cache) Rewrite(ctx context.Context, instructions, source string, p Profile) string {
	key := cacheKey{instructions: instructions, source: source, profile: p}

	c.mu.RLock()
	text, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return text
	}

	v, _, _ := c.group.Do(flightKey(key), func() (any, error) {
		text := c.next.Rewrite(ctx, instructions, source, p)
		c.mu.Lock()
		c.entries[key] = text
		c.mu.Unlock()
		return text, nil
	})
	return v.(string)
}

// Len reports how many distinct requests have been cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func flightKey(k cacheKey) string {
	return fmt.Sprintf("%s\x00%g\x00%d\x00%s\x00%s",
		k.profile.Model, k.profile.Temperature, k.profile.MaxTokens, k.instructions, k.source)
}

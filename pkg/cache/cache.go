// Package cache holds the in-process cache for derived repository/tag
// views. Invalidation is deliberately coarse: the sync path flushes the
// whole cache after every applied event.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dockerplatform/registry-gate/pkg/domain"
)

type ListingCache struct {
	cache *gocache.Cache
}

func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *ListingCache) GetTags(repositoryFullName string) ([]domain.Tag, bool) {
	value, found := c.cache.Get(repositoryFullName)
	if !found {
		return nil, false
	}
	tags, ok := value.([]domain.Tag)
	return tags, ok
}

func (c *ListingCache) SetTags(repositoryFullName string, tags []domain.Tag) {
	c.cache.Set(repositoryFullName, tags, gocache.DefaultExpiration)
}

func (c *ListingCache) ClearAll() {
	c.cache.Flush()
}

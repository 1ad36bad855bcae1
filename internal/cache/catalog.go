package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greencycle/greencycle/internal/model"
)

// Catalog key namespaces.
const (
	sectionsKey  = "catalog:sections"
	itemKeyPart  = "catalog:item"
	itemPagePart = "catalog:items"
)

// ErrCacheMiss is returned when a key is absent or unusable.
var ErrCacheMiss = errors.New("cache miss")

// CatalogCache caches recyclepedia reads, which change rarely.
type CatalogCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewCatalogCache creates a CatalogCache with the given entry TTL.
func NewCatalogCache(c *Cache, ttl time.Duration) *CatalogCache {
	return &CatalogCache{cache: c, ttl: ttl}
}

// Sections returns cached sections or ErrCacheMiss.
func (c *CatalogCache) Sections(ctx context.Context) ([]model.Section, error) {
	var out []model.Section
	if err := c.get(ctx, c.cache.key(sectionsKey), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSections caches the section list.
func (c *CatalogCache) SetSections(ctx context.Context, sections []model.Section) error {
	return c.set(ctx, c.cache.key(sectionsKey), sections)
}

// Item returns a cached item or ErrCacheMiss.
func (c *CatalogCache) Item(ctx context.Context, id int64) (*model.Item, error) {
	var out model.Item
	if err := c.get(ctx, c.cache.key(itemKeyPart, strconv.FormatInt(id, 10)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetItem caches one item.
func (c *CatalogCache) SetItem(ctx context.Context, item *model.Item) error {
	return c.set(ctx, c.cache.key(itemKeyPart, strconv.FormatInt(item.ID, 10)), item)
}

// ItemPage returns a cached list page keyed by its encoded query.
func (c *CatalogCache) ItemPage(ctx context.Context, query string) (*model.ItemPage, error) {
	var out model.ItemPage
	if err := c.get(ctx, c.cache.key(itemPagePart, query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetItemPage caches a list page.
func (c *CatalogCache) SetItemPage(ctx context.Context, query string, page *model.ItemPage) error {
	return c.set(ctx, c.cache.key(itemPagePart, query), page)
}

// Invalidate drops every catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	pattern := c.cache.key("catalog:*")
	for {
		keys, next, err := c.cache.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan catalog keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.cache.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete catalog keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *CatalogCache) get(ctx context.Context, key string, dst any) error {
	data, err := c.cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// Corrupted cache entry - treat as miss
		return ErrCacheMiss
	}
	return nil
}

func (c *CatalogCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.cache.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

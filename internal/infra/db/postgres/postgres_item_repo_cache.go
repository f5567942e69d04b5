package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/metrics"
	red "bookstore-payments/internal/infra/redis"
)

var _ repository.ItemRepository = (*itemRepoCacheDecorator)(nil)

// itemRepoCacheDecorator caches catalog reads. The catalog changes rarely and
// purchase amounts are snapshotted anyway, so a short TTL is safe.
type itemRepoCacheDecorator struct {
	inner repository.ItemRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewItemRepoCacheDecorator(inner repository.ItemRepository, cache red.RedisClient, ttl time.Duration) repository.ItemRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &itemRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *itemRepoCacheDecorator) FindByTypeAndID(ctx context.Context, tx repository.Tx, itemType model.ItemType, id string) (*model.Item, error) {
	key := fmt.Sprintf("item:%s:%s", itemType, id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var it model.Item
		if json.Unmarshal([]byte(val), &it) == nil {
			metrics.IncCacheRequest("item", "hit")
			return &it, nil
		}
		// Poisoned entry; refetch below.
		metrics.IncCacheRequest("item", "miss")
	case errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("item", "miss")
	default:
		// Redis trouble is not a reason to fail a catalog read.
		metrics.IncCacheRequest("item", "error")
	}

	it, err := d.inner.FindByTypeAndID(ctx, tx, itemType, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(it); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return it, nil
}

func (d *itemRepoCacheDecorator) BundleBookIDs(ctx context.Context, tx repository.Tx, bundleID string) ([]string, error) {
	key := fmt.Sprintf("bundle_books:%s", bundleID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var ids []string
		if json.Unmarshal([]byte(val), &ids) == nil && len(ids) > 0 {
			metrics.IncCacheRequest("bundle_books", "hit")
			return ids, nil
		}
		metrics.IncCacheRequest("bundle_books", "miss")
	case errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("bundle_books", "miss")
	default:
		metrics.IncCacheRequest("bundle_books", "error")
	}

	ids, err := d.inner.BundleBookIDs(ctx, tx, bundleID)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(ids); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return ids, nil
}

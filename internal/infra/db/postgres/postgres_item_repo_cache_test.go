//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
)

type fakeItemRepo struct {
	items map[string]*model.Item
	calls int
}

func (f *fakeItemRepo) FindByTypeAndID(_ context.Context, _ repository.Tx, itemType model.ItemType, id string) (*model.Item, error) {
	f.calls++
	it, ok := f.items[string(itemType)+"/"+id]
	if !ok {
		return nil, errors.New("not in catalog")
	}
	return it, nil
}

func (f *fakeItemRepo) BundleBookIDs(context.Context, repository.Tx, string) ([]string, error) {
	return nil, errors.New("not used")
}

// fakeCache implements red.RedisClient over a map; getErr forces backend
// failures.
type fakeCache struct {
	data   map[string]string
	getErr error
	sets   int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Ping(context.Context) error { return nil }

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.sets++
	if b, ok := value.([]byte); ok {
		f.data[key] = string(b)
	}
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeCache) Incr(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeCache) Expire(context.Context, string, time.Duration) error { return nil }

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) Close() error { return nil }

func TestItemRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	book := &model.Item{ID: "b-1", Type: model.ItemTypeBook, Title: "Injera at Home", Price: 30_000}

	t.Run("miss fetches inner and populates cache", func(t *testing.T) {
		inner := &fakeItemRepo{items: map[string]*model.Item{"book/b-1": book}}
		cache := newFakeCache()
		repo := NewItemRepoCacheDecorator(inner, cache, time.Minute)

		got, err := repo.FindByTypeAndID(ctx, repository.NoTX, model.ItemTypeBook, "b-1")
		if err != nil {
			t.Fatalf("FindByTypeAndID: %v", err)
		}
		if got.Price != book.Price || inner.calls != 1 || cache.sets != 1 {
			t.Fatalf("got price=%d inner calls=%d sets=%d", got.Price, inner.calls, cache.sets)
		}
	})

	t.Run("hit skips inner", func(t *testing.T) {
		inner := &fakeItemRepo{items: map[string]*model.Item{"book/b-1": book}}
		cache := newFakeCache()
		payload, _ := json.Marshal(book)
		cache.data["item:book:b-1"] = string(payload)
		repo := NewItemRepoCacheDecorator(inner, cache, time.Minute)

		got, err := repo.FindByTypeAndID(ctx, repository.NoTX, model.ItemTypeBook, "b-1")
		if err != nil {
			t.Fatalf("FindByTypeAndID: %v", err)
		}
		if got.Title != book.Title {
			t.Fatalf("got %+v", got)
		}
		if inner.calls != 0 {
			t.Fatalf("inner consulted %d times on a warm cache", inner.calls)
		}
	})

	t.Run("backend failure falls back to inner", func(t *testing.T) {
		inner := &fakeItemRepo{items: map[string]*model.Item{"book/b-1": book}}
		cache := newFakeCache()
		cache.getErr = errors.New("connection refused")
		repo := NewItemRepoCacheDecorator(inner, cache, time.Minute)

		got, err := repo.FindByTypeAndID(ctx, repository.NoTX, model.ItemTypeBook, "b-1")
		if err != nil {
			t.Fatalf("catalog read must survive a cache outage: %v", err)
		}
		if got.ID != "b-1" || inner.calls != 1 {
			t.Fatalf("got %+v, inner calls=%d", got, inner.calls)
		}
	})

	t.Run("poisoned entry refetches", func(t *testing.T) {
		inner := &fakeItemRepo{items: map[string]*model.Item{"book/b-1": book}}
		cache := newFakeCache()
		cache.data["item:book:b-1"] = "{not json"
		repo := NewItemRepoCacheDecorator(inner, cache, time.Minute)

		got, err := repo.FindByTypeAndID(ctx, repository.NoTX, model.ItemTypeBook, "b-1")
		if err != nil {
			t.Fatalf("FindByTypeAndID: %v", err)
		}
		if got.Price != book.Price || inner.calls != 1 {
			t.Fatalf("got %+v, inner calls=%d", got, inner.calls)
		}
	})
}

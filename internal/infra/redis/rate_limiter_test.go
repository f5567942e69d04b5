//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClient is an in-memory RedisClient good enough for counter semantics.
type fakeClient struct {
	mu       sync.Mutex
	counters map[string]int64
	expires  map[string]time.Duration
	incrErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{counters: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	return nil
}

func (f *fakeClient) Get(context.Context, string) (string, error) { return "", errors.New("no value") }

func (f *fakeClient) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeClient) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = ttl
	return nil
}

func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.counters, k)
	}
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestRateLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	client := newFakeClient()
	rl := NewRateLimiter(client)
	ctx := context.Background()
	key := TelegramCommandKey(42, "/start")

	for i := 0; i < 5; i++ {
		ok, err := rl.Allow(ctx, key, 5, time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("request %d within limit was denied", i+1)
		}
	}
	ok, err := rl.Allow(ctx, key, 5, time.Minute)
	if err != nil {
		t.Fatalf("Allow #6: %v", err)
	}
	if ok {
		t.Fatal("request over the limit was allowed")
	}

	// Window TTL must be set on the first increment only.
	if client.expires[key] != time.Minute {
		t.Errorf("expected 1m expiry on key, got %v", client.expires[key])
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(newFakeClient())
	ctx := context.Background()

	if ok, _ := rl.Allow(ctx, TelegramCommandKey(1, "/start"), 1, time.Minute); !ok {
		t.Fatal("first user denied")
	}
	if ok, _ := rl.Allow(ctx, TelegramCommandKey(1, "/start"), 1, time.Minute); ok {
		t.Fatal("first user not limited")
	}
	// A different user and a different command both get fresh windows.
	if ok, _ := rl.Allow(ctx, TelegramCommandKey(2, "/start"), 1, time.Minute); !ok {
		t.Fatal("second user denied")
	}
	if ok, _ := rl.Allow(ctx, TelegramCommandKey(1, "/status"), 1, time.Minute); !ok {
		t.Fatal("other command denied")
	}
}

func TestRateLimiter_BackendErrorSurfaces(t *testing.T) {
	client := newFakeClient()
	client.incrErr = errors.New("connection refused")
	rl := NewRateLimiter(client)

	ok, err := rl.Allow(context.Background(), "k", 5, time.Minute)
	if err == nil {
		t.Fatal("expected error")
	}
	if ok {
		t.Fatal("failed check must not allow")
	}
}

package storage

import (
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := NewRedisStore(client, "vitrine:", zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)

	if err := store.Set("currentUser", []byte(`{"id":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok := store.Get("currentUser")
	if !ok || string(value) != `{"id":1}` {
		t.Errorf("Get = %q, %v", value, ok)
	}

	store.Remove("currentUser")
	if _, ok := store.Get("currentUser"); ok {
		t.Error("removed key still present")
	}
}

func TestRedisStoreKeysStripPrefix(t *testing.T) {
	store := newRedisStore(t)
	store.Set("cart_5", []byte("[]"))
	store.Set("purchases_5", []byte("[]"))

	keys := store.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "cart_5" || keys[1] != "purchases_5" {
		t.Errorf("Keys = %v", keys)
	}

	store.Clear()
	if len(store.Keys()) != 0 {
		t.Errorf("Clear left keys: %v", store.Keys())
	}
}

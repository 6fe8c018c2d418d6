// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leafsii/post-api/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Overwrite", testOverwrite},
		{"Del", testDel},
		{"Exists", testExists},
		{"SetWithTTL", testSetWithTTL},
		{"Expire", testExpire},
		{"ExpireMissing", testExpireMissing},
		{"TTL", testTTL},
		{"HealthCheck", testHealthCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:string"
	value := []byte(`{"user":"alice"}`)
	defer store.Del(ctx, key)

	if err := store.Set(ctx, key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != string(value) {
		t.Fatalf("Expected %q, got %q", value, result)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "kvtest:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:overwrite"
	defer store.Del(ctx, key)

	store.Set(ctx, key, []byte("one"), time.Hour)
	if err := store.Set(ctx, key, []byte("two")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != "two" {
		t.Fatalf("Expected overwritten value, got %q", result)
	}

	// A plain Set clears a previous expiry
	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 after overwrite without TTL, got %v", ttl)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key1, key2 := "kvtest:del1", "kvtest:del2"
	defer store.Del(ctx, key1, key2)

	store.Set(ctx, key1, []byte("a"))
	store.Set(ctx, key2, []byte("b"))

	deleted, err := store.Del(ctx, key1, "kvtest:del-missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	if _, err := store.Get(ctx, key1); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}
	if _, err := store.Get(ctx, key2); err != nil {
		t.Fatalf("Expected key2 to still exist, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:exists"
	defer store.Del(ctx, key)

	n, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected 0 for missing key, got %d", n)
	}

	store.Set(ctx, key, []byte("x"))
	n, err = store.Exists(ctx, key, "kvtest:exists-missing")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1, got %d", n)
	}
}

func testSetWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:ttl"
	defer store.Del(ctx, key)

	if err := store.Set(ctx, key, []byte("x"), 100*time.Millisecond); err != nil {
		t.Fatalf("Set with TTL failed: %v", err)
	}
	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("Expected key before expiry, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:expire"
	defer store.Del(ctx, key)

	store.Set(ctx, key, []byte("x"))

	ok, err := store.Expire(ctx, key, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected Expire to return true for existing key")
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpireMissing(t *testing.T, store kv.Store) {
	ok, err := store.Expire(context.Background(), "kvtest:expire-missing", time.Second)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected Expire to return false for missing key")
	}
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "kvtest:ttl-check"
	defer store.Del(ctx, key)

	if _, err := store.TTL(ctx, key); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	store.Set(ctx, key, []byte("x"))
	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 for key without TTL, got %v", ttl)
	}

	store.Set(ctx, key, []byte("x"), 2*time.Second)
	ttl, err = store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Second {
		t.Fatalf("Expected TTL between 0 and 2s, got %v", ttl)
	}
}

func testHealthCheck(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed for healthy store: %v", err)
	}
}

package redisstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := New(client, "crm:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, server
}

func TestStore_SetGetDelete(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "state:o1:u1", []byte(`{"state":"n"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !server.Exists("crm:state:o1:u1") {
		t.Fatalf("expected prefixed key in redis")
	}
	if ttl := server.TTL("crm:state:o1:u1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}
	value, err := store.Get(ctx, "state:o1:u1")
	if err != nil || string(value) != `{"state":"n"}` {
		t.Fatalf("unexpected get %q %v", value, err)
	}
	if err := store.Delete(ctx, "state:o1:u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "state:o1:u1"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_ExpiredKeyIsMissing(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "state:o1:u1", []byte("v"), 600*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	server.FastForward(601 * time.Second)
	if _, err := store.Get(ctx, "state:o1:u1"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expected expired key to be missing, got %v", err)
	}
}

func TestStore_TakeIsSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "credentials:o1:u1", []byte(`{"access_token":"at"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "credentials:o1:u1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful take, got %d", wins.Load())
	}
	if _, err := store.Take(ctx, "credentials:o1:u1"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("expected not found on second take, got %v", err)
	}
}

func TestStore_UnavailableReturnsRichError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second})
	defer client.Close()
	store, err := New(client, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Get(context.Background(), "state:o1:u1")
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %v", err)
	}
	if rich.TextCode != core.ServiceErrorStoreUnavailable {
		t.Fatalf("expected store unavailable text code, got %q", rich.TextCode)
	}
}

func TestStore_Validation(t *testing.T) {
	if _, err := New(nil, ""); err == nil {
		t.Fatalf("expected nil client error")
	}
	store, _ := newTestStore(t)
	if err := store.Set(context.Background(), " ", []byte("v"), time.Minute); err == nil {
		t.Fatalf("expected empty key error")
	}
	if err := store.Set(context.Background(), "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected ttl error")
	}
}

func TestOpen_ConnectsAndPings(t *testing.T) {
	server := miniredis.RunT(t)
	store, client, err := Open(context.Background(), Config{Addr: server.Addr(), KeyPrefix: "x:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()
	if err := store.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !server.Exists("x:k") {
		t.Fatalf("expected prefixed key")
	}
	if _, _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing addr error")
	}
}

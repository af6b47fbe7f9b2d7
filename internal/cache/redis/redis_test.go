package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/fedshare/fedshare-go/internal/cache"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	srv := miniredis.RunT(t)
	c := New(&Config{Addr: srv.Addr(), DialTimeout: time.Second}, nil)
	t.Cleanup(func() { c.Close() })

	if c.IsUsingFallback() {
		t.Fatalf("expected live connection to miniredis at %s", srv.Addr())
	}
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Get(context.Background(), "nope")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := c.Get(ctx, "k")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestFallbackWhenUnreachable(t *testing.T) {
	// Nothing listens on this port; the cache must degrade to memory.
	c := New(&Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, nil)
	defer c.Close()

	if !c.IsUsingFallback() {
		t.Fatal("expected fallback mode when server is unreachable")
	}

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set via fallback: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get via fallback: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedshare/fedshare-go/internal/cache"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
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
	c := New(time.Minute, 0)
	defer c.Close()

	_, err := c.Get(context.Background(), "nope")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	if !errors.Is(err, cache.ErrExpired) {
		t.Errorf("Get expired = %v, want ErrExpired", err)
	}
}

func TestDelete(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
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

func TestValueIsolation(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	src := []byte("abc")
	if err := c.Set(ctx, "k", src, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	src[0] = 'x'

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}

	got[0] = 'y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestDriverRegistration(t *testing.T) {
	c, err := cache.New("memory", map[string]any{"default_ttl_seconds": int64(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Errorf("Get: %v", err)
	}
}

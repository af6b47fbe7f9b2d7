// Package memory provides an in-memory cache implementation with TTL support.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fedshare/fedshare-go/internal/cache"
	"github.com/fedshare/fedshare-go/internal/cfg"
)

// settings is the [cache.drivers.memory] section of the config file.
type settings struct {
	DefaultTTLSeconds      int `mapstructure:"default_ttl_seconds"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
}

func (s *settings) ApplyDefaults() {
	if s.DefaultTTLSeconds <= 0 {
		s.DefaultTTLSeconds = 900
	}
	if s.CleanupIntervalSeconds <= 0 {
		s.CleanupIntervalSeconds = 300
	}
}

func init() {
	cache.RegisterDriver("memory", func(raw map[string]any) (cache.Cache, error) {
		var s settings
		if err := cfg.Decode(raw, &s); err != nil {
			return nil, err
		}
		return New(
			time.Duration(s.DefaultTTLSeconds)*time.Second,
			time.Duration(s.CleanupIntervalSeconds)*time.Second,
		), nil
	})
}

// item represents a cached value with expiration.
type item struct {
	value     []byte
	expiresAt time.Time
}

func (i *item) isExpired() bool {
	return time.Now().After(i.expiresAt)
}

// Cache is an in-memory cache with TTL support.
type Cache struct {
	mu         sync.RWMutex
	items      map[string]*item
	defaultTTL time.Duration
	stopClean  chan struct{}
	closeOnce  sync.Once
}

// New creates a new in-memory cache.
// cleanupInterval specifies how often to run the cleanup goroutine (0 disables).
func New(defaultTTL time.Duration, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		items:      make(map[string]*item),
		defaultTTL: defaultTTL,
		stopClean:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}

	return c
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopClean:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, cache.ErrNotFound
	}

	if item.isExpired() {
		return nil, cache.ErrExpired
	}

	// Return a copy to prevent mutation
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &item{
		value:     valueCopy,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stopClean) })
	return nil
}

var _ cache.Cache = (*Cache)(nil)

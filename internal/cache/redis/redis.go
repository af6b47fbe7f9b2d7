// Package redis provides a Redis/Valkey cache driver with failover to in-memory.
package redis

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/fedshare/fedshare-go/internal/cache"
	"github.com/fedshare/fedshare-go/internal/cache/memory"
	"github.com/fedshare/fedshare-go/internal/cfg"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
)

// settings is the [cache.drivers.redis] section of the config file.
type settings struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	DialTimeoutMS int    `mapstructure:"dial_timeout_ms"`
}

func (s *settings) ApplyDefaults() {
	if s.Addr == "" {
		s.Addr = "localhost:6379"
	}
	if s.DialTimeoutMS <= 0 {
		s.DialTimeoutMS = 5000
	}
}

func init() {
	cache.RegisterDriver("redis", func(raw map[string]any) (cache.Cache, error) {
		var s settings
		if err := cfg.Decode(raw, &s); err != nil {
			return nil, err
		}
		conf := &Config{
			Addr:        s.Addr,
			Password:    s.Password,
			DB:          s.DB,
			DialTimeout: time.Duration(s.DialTimeoutMS) * time.Millisecond,
		}
		return New(conf, slog.Default()), nil
	})
}

// Config holds Redis connection configuration.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local Redis/Valkey instance.
func DefaultConfig() *Config {
	return &Config{
		Addr:        "localhost:6379",
		DB:          0,
		DialTimeout: 5 * time.Second,
	}
}

// Cache wraps a Valkey client with automatic failover to in-memory cache.
// When the server is unavailable at startup, operations transparently fall
// back to memory so federation keeps working without the shared cache.
type Cache struct {
	mu          sync.RWMutex
	client      valkey.Client
	fallback    *memory.Cache
	logger      *slog.Logger
	useFallback bool
}

// New creates a new Valkey-backed cache with in-memory fallback.
func New(conf *Config, logger *slog.Logger) *Cache {
	if conf == nil {
		conf = DefaultConfig()
	}
	logger = logutil.OrNoop(logger)

	c := &Cache{
		fallback: memory.New(cache.TTLEndpoints, time.Minute),
		logger:   logger,
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{conf.Addr},
		Password:    conf.Password,
		SelectDB:    conf.DB,
		Dialer: net.Dialer{
			Timeout: conf.DialTimeout,
		},
		// Server-assisted client caching needs CLIENT TRACKING, which not
		// every deployment target supports.
		DisableCache: true,
	})
	if err != nil {
		c.useFallback = true
		logger.Warn("cache server unavailable, using in-memory fallback",
			"addr", conf.Addr, "error", err)
		return c
	}

	c.client = client
	logger.Info("cache connected", "addr", conf.Addr, "db", conf.DB)
	return c
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	useFallback := c.useFallback
	c.mu.RUnlock()

	if useFallback {
		return c.fallback.Get(ctx, key)
	}

	val, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.RLock()
	useFallback := c.useFallback
	c.mu.RUnlock()

	if useFallback {
		return c.fallback.Set(ctx, key, value, ttl)
	}

	if ttl == 0 {
		ttl = cache.TTLEndpoints
	}

	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Px(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.RLock()
	useFallback := c.useFallback
	c.mu.RUnlock()

	if useFallback {
		return c.fallback.Delete(ctx, key)
	}

	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// IsUsingFallback reports whether operations are served from memory.
func (c *Cache) IsUsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useFallback
}

// Close releases resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	return c.fallback.Close()
}

var _ cache.Cache = (*Cache)(nil)

// Package cache provides TTL-based key-value caching behind a driver
// registry. The federation engine caches remote service documents and
// discovery probes here.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A zero TTL means the driver
	// default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Default TTLs for the cache categories this engine uses.
const (
	// TTLEndpoints bounds how long a remote's discovered service-document
	// endpoints are reused before being re-fetched.
	TTLEndpoints = 15 * time.Minute

	// TTLOCMProbe bounds how long a remote's modern-push capability probe
	// result is reused.
	TTLOCMProbe = 15 * time.Minute
)

// DriverFactory builds a cache from its settings section.
type DriverFactory func(settings map[string]any) (Cache, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// RegisterDriver registers a cache driver factory by name, typically from a
// driver package init().
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a cache using the named driver and its settings section.
func New(driver string, settings map[string]any) (Cache, error) {
	if driver == "" {
		driver = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown cache driver: %s", driver)
	}
	return factory(settings)
}

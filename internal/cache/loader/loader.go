// Package loader registers cache drivers via blank imports.
// Import this package to ensure the default cache drivers are available.
//
// Usage in main.go:
//
//	import _ "github.com/fedshare/fedshare-go/internal/cache/loader"
package loader

import (
	// Register the memory cache driver
	_ "github.com/fedshare/fedshare-go/internal/cache/memory"

	// Register the redis/valkey cache driver
	_ "github.com/fedshare/fedshare-go/internal/cache/redis"
)

// Package config provides configuration loading and validation.
package config

// Config holds the full server configuration.
type Config struct {
	// PublicOrigin is the public base URL of this instance (scheme + host +
	// optional port). It is what remote instances see as "us" and what the
	// address resolver treats as the local instance for loop detection.
	// Example: "https://cloud.example.org"
	PublicOrigin string `json:"public_origin"`

	// ListenAddr is the address the HTTP server binds to. Example: ":9200"
	ListenAddr string `json:"listen_addr"`

	Federation   FederationConfig   `json:"federation"`
	Store        StoreConfig        `json:"store"`
	Cache        CacheConfig        `json:"cache"`
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
	Retry        RetryConfig        `json:"retry"`
	TLS          TLSConfig          `json:"tls"`
	Logging      LoggingConfig      `json:"logging"`
}

// FederationConfig holds the instance-wide federation policy flags.
type FederationConfig struct {
	// OutgoingEnabled allows local users to share with remote instances.
	OutgoingEnabled bool `json:"outgoing_enabled"`

	// IncomingEnabled allows remote instances to share with local users.
	// When disabled, inbound createShare answers 503.
	IncomingEnabled bool `json:"incoming_enabled"`

	// Users is the list of local user ids that may receive federated
	// shares. Empty means any shareWith value is accepted (dev setups and
	// deployments that validate users upstream).
	Users []string `json:"users"`
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	// Driver is the store driver name: sqlite, memory
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db).
	DataDir string `json:"data_dir"`
}

// CacheConfig selects and configures the cache driver.
type CacheConfig struct {
	// Driver is the cache driver name: memory, redis. Empty means memory.
	Driver string `json:"driver"`

	// Drivers holds per-driver settings keyed by driver name, decoded by
	// the driver itself.
	Drivers map[string]map[string]any `json:"-"`
}

// OutboundHTTPConfig bounds outbound requests to federation partners.
// One unreachable partner must never hang a calling request.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off
	SSRFMode string `json:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds.
	ConnectTimeoutMS int `json:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of redirects to follow.
	MaxRedirects int `json:"max_redirects"`

	// MaxResponseBytes is the maximum response body size.
	MaxResponseBytes int64 `json:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only).
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// RetryConfig controls the notification retry runner.
type RetryConfig struct {
	// IntervalSeconds is how often the runner scans for due retry tasks.
	IntervalSeconds int `json:"interval_seconds"`

	// MaxAttempts is the attempt count after which a task is dropped.
	MaxAttempts int `json:"max_attempts"`
}

// TLSConfig holds TLS settings for the inbound listener.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned
	Mode string `json:"mode"`

	// CertFile and KeyFile for static mode.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// SelfSignedDir is where generated certificates are kept.
	SelfSignedDir string `json:"self_signed_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: trace, debug, info, warn, error
	Level string `json:"level"`
}

// Redacted returns a copy of the config safe for logging.
// Driver settings maps may carry credentials (redis passwords) and are
// reduced to their keys.
func (c *Config) Redacted() map[string]any {
	cacheDrivers := make([]string, 0, len(c.Cache.Drivers))
	for name := range c.Cache.Drivers {
		cacheDrivers = append(cacheDrivers, name)
	}

	return map[string]any{
		"public_origin": c.PublicOrigin,
		"listen_addr":   c.ListenAddr,
		"federation": map[string]any{
			"outgoing_enabled": c.Federation.OutgoingEnabled,
			"incoming_enabled": c.Federation.IncomingEnabled,
			"users":            len(c.Federation.Users),
		},
		"store": map[string]any{
			"driver":   c.Store.Driver,
			"data_dir": c.Store.DataDir,
		},
		"cache": map[string]any{
			"driver":             c.Cache.Driver,
			"configured_drivers": cacheDrivers,
		},
		"outbound_http": c.OutboundHTTP,
		"retry":         c.Retry,
		"tls": map[string]any{
			"mode": c.TLS.Mode,
		},
		"logging": c.Logging,
	}
}

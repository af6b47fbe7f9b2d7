package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional). If provided
	// but missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warnings (e.g. undecoded keys). Nil uses
	// slog.Default().
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty-string pointers mean "not set on the command line".
type FlagOverrides struct {
	ListenAddr      *string
	PublicOrigin    *string
	StoreDriver     *string
	StoreDataDir    *string
	TLSMode         *string
	LoggingLevel    *string
	OutgoingEnabled *string // "true", "false", or "" (unset)
	IncomingEnabled *string // "true", "false", or "" (unset)
}

// fileConfig mirrors Config with pointer sections so presence is detectable.
type fileConfig struct {
	PublicOrigin string `toml:"public_origin"`
	ListenAddr   string `toml:"listen_addr"`

	Federation   *federationFileConfig `toml:"federation"`
	Store        *StoreConfig          `toml:"store"`
	Cache        *cacheFileConfig      `toml:"cache"`
	OutboundHTTP *OutboundHTTPConfig   `toml:"outbound_http"`
	Retry        *RetryConfig          `toml:"retry"`
	TLS          *TLSConfig            `toml:"tls"`
	Logging      *LoggingConfig        `toml:"logging"`
}

type federationFileConfig struct {
	OutgoingEnabled *bool    `toml:"outgoing_enabled"`
	IncomingEnabled *bool    `toml:"incoming_enabled"`
	Users           []string `toml:"users"`
}

type cacheFileConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() *Config {
	return &Config{
		ListenAddr: ":9200",
		Federation: FederationConfig{
			OutgoingEnabled: true,
			IncomingEnabled: true,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: "data",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		OutboundHTTP: OutboundHTTPConfig{
			SSRFMode:         "strict",
			TimeoutMS:        10000,
			ConnectTimeoutMS: 2000,
			MaxRedirects:     1,
			MaxResponseBytes: 1048576,
		},
		Retry: RetryConfig{
			IntervalSeconds: 300,
			MaxAttempts:     20,
		},
		TLS: TLSConfig{
			Mode: "off",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration with precedence:
// defaults -> TOML file -> CLI flags.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Defaults()

	if opts.ConfigPath != "" {
		if err := applyFile(cfg, opts.ConfigPath, logger); err != nil {
			return nil, err
		}
	}

	if err := applyFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	meta, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		logger.Warn("unknown config key ignored", "key", key.String(), "file", path)
	}

	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Federation != nil {
		if fc.Federation.OutgoingEnabled != nil {
			cfg.Federation.OutgoingEnabled = *fc.Federation.OutgoingEnabled
		}
		if fc.Federation.IncomingEnabled != nil {
			cfg.Federation.IncomingEnabled = *fc.Federation.IncomingEnabled
		}
		if fc.Federation.Users != nil {
			cfg.Federation.Users = fc.Federation.Users
		}
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}
	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}
	if fc.OutboundHTTP != nil {
		applyOutboundHTTP(&cfg.OutboundHTTP, fc.OutboundHTTP)
	}
	if fc.Retry != nil {
		if fc.Retry.IntervalSeconds > 0 {
			cfg.Retry.IntervalSeconds = fc.Retry.IntervalSeconds
		}
		if fc.Retry.MaxAttempts > 0 {
			cfg.Retry.MaxAttempts = fc.Retry.MaxAttempts
		}
	}
	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		cfg.TLS.CertFile = fc.TLS.CertFile
		cfg.TLS.KeyFile = fc.TLS.KeyFile
		cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}

	return nil
}

func applyOutboundHTTP(dst, src *OutboundHTTPConfig) {
	if src.SSRFMode != "" {
		dst.SSRFMode = src.SSRFMode
	}
	if src.TimeoutMS > 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
	if src.ConnectTimeoutMS > 0 {
		dst.ConnectTimeoutMS = src.ConnectTimeoutMS
	}
	if src.MaxRedirects > 0 {
		dst.MaxRedirects = src.MaxRedirects
	}
	if src.MaxResponseBytes > 0 {
		dst.MaxResponseBytes = src.MaxResponseBytes
	}
	dst.InsecureSkipVerify = src.InsecureSkipVerify
}

func applyFlags(cfg *Config, f FlagOverrides) error {
	if set(f.ListenAddr) {
		cfg.ListenAddr = *f.ListenAddr
	}
	if set(f.PublicOrigin) {
		cfg.PublicOrigin = *f.PublicOrigin
	}
	if set(f.StoreDriver) {
		cfg.Store.Driver = *f.StoreDriver
	}
	if set(f.StoreDataDir) {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if set(f.TLSMode) {
		cfg.TLS.Mode = *f.TLSMode
	}
	if set(f.LoggingLevel) {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if set(f.OutgoingEnabled) {
		v, err := strconv.ParseBool(*f.OutgoingEnabled)
		if err != nil {
			return fmt.Errorf("invalid --outgoing-enabled value %q", *f.OutgoingEnabled)
		}
		cfg.Federation.OutgoingEnabled = v
	}
	if set(f.IncomingEnabled) {
		v, err := strconv.ParseBool(*f.IncomingEnabled)
		if err != nil {
			return fmt.Errorf("invalid --incoming-enabled value %q", *f.IncomingEnabled)
		}
		cfg.Federation.IncomingEnabled = v
	}
	return nil
}

func set(p *string) bool { return p != nil && *p != "" }

// Validate checks the effective configuration for consistency.
func Validate(cfg *Config) error {
	if cfg.PublicOrigin == "" {
		return fmt.Errorf("public_origin is required")
	}
	u, err := url.Parse(cfg.PublicOrigin)
	if err != nil || u.Host == "" {
		return fmt.Errorf("public_origin %q is not a valid URL", cfg.PublicOrigin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("public_origin scheme must be http or https, got %q", u.Scheme)
	}
	if strings.Contains(u.Path, "index.php") {
		return fmt.Errorf("public_origin must not include an index-file path")
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	switch cfg.TLS.Mode {
	case "off", "selfsigned":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.mode=static requires cert_file and key_file")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned", cfg.TLS.Mode)
	}

	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be strict or off", cfg.OutboundHTTP.SSRFMode)
	}

	if cfg.Store.Driver == "" {
		return fmt.Errorf("store.driver is required")
	}

	return nil
}

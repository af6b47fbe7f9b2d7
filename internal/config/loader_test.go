package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithOrigin(t *testing.T) {
	origin := "https://cloud.example.org"
	cfg, err := Load(LoaderOptions{
		FlagOverrides: FlagOverrides{PublicOrigin: &origin},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9200" {
		t.Errorf("ListenAddr = %q, want :9200", cfg.ListenAddr)
	}
	if !cfg.Federation.OutgoingEnabled || !cfg.Federation.IncomingEnabled {
		t.Errorf("federation should default to enabled both ways, got %+v", cfg.Federation)
	}
	if cfg.OutboundHTTP.TimeoutMS != 10000 || cfg.OutboundHTTP.ConnectTimeoutMS != 2000 {
		t.Errorf("outbound timeouts = %+v, want 10000/2000", cfg.OutboundHTTP)
	}
	if cfg.Retry.IntervalSeconds != 300 || cfg.Retry.MaxAttempts != 20 {
		t.Errorf("retry defaults = %+v, want 300/20", cfg.Retry)
	}
}

func TestLoad_MissingOrigin(t *testing.T) {
	_, err := Load(LoaderOptions{})
	if err == nil {
		t.Fatal("Load without public_origin should fail")
	}
}

func TestLoad_FileAndFlagPrecedence(t *testing.T) {
	path := writeConfig(t, `
public_origin = "https://file.example.org"
listen_addr = ":8080"

[federation]
outgoing_enabled = false
users = ["alice", "bob"]

[store]
driver = "json"
data_dir = "/var/lib/fedshare"

[retry]
interval_seconds = 60
max_attempts = 5
`)

	listen := ":9999"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		FlagOverrides: FlagOverrides{
			ListenAddr: &listen,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PublicOrigin != "https://file.example.org" {
		t.Errorf("PublicOrigin = %q", cfg.PublicOrigin)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("flag should override file, ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Federation.OutgoingEnabled {
		t.Error("outgoing_enabled should be false from file")
	}
	if !cfg.Federation.IncomingEnabled {
		t.Error("incoming_enabled should keep its default")
	}
	if len(cfg.Federation.Users) != 2 {
		t.Errorf("users = %v", cfg.Federation.Users)
	}
	if cfg.Store.Driver != "json" || cfg.Store.DataDir != "/var/lib/fedshare" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Retry.IntervalSeconds != 60 || cfg.Retry.MaxAttempts != 5 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
}

func TestLoad_InvalidTLSMode(t *testing.T) {
	origin := "https://cloud.example.org"
	mode := "acme"
	_, err := Load(LoaderOptions{
		FlagOverrides: FlagOverrides{PublicOrigin: &origin, TLSMode: &mode},
	})
	if err == nil {
		t.Fatal("tls.mode=acme should be rejected")
	}
	if !strings.Contains(err.Error(), "tls.mode") {
		t.Errorf("error should name tls.mode, got %v", err)
	}
}

func TestLoad_StaticTLSRequiresFiles(t *testing.T) {
	origin := "https://cloud.example.org"
	mode := "static"
	_, err := Load(LoaderOptions{
		FlagOverrides: FlagOverrides{PublicOrigin: &origin, TLSMode: &mode},
	})
	if err == nil {
		t.Fatal("tls.mode=static without cert/key should fail")
	}
}

func TestLoad_CacheDriverSettings(t *testing.T) {
	path := writeConfig(t, `
public_origin = "https://cloud.example.org"

[cache]
driver = "redis"

[cache.drivers.redis]
addr = "redis.internal:6379"
password = "secret"
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Driver != "redis" {
		t.Errorf("cache driver = %q", cfg.Cache.Driver)
	}
	settings := cfg.Cache.Drivers["redis"]
	if settings["addr"] != "redis.internal:6379" {
		t.Errorf("redis addr = %v", settings["addr"])
	}

	// Redacted must not leak driver settings values.
	red := cfg.Redacted()
	for _, v := range red {
		if m, ok := v.(map[string]any); ok {
			for _, mv := range m {
				if s, ok := mv.(string); ok && s == "secret" {
					t.Error("Redacted leaked a driver secret")
				}
			}
		}
	}
}

func TestLoad_OriginWithIndexPathRejected(t *testing.T) {
	origin := "https://cloud.example.org/index.php"
	_, err := Load(LoaderOptions{FlagOverrides: FlagOverrides{PublicOrigin: &origin}})
	if err == nil {
		t.Fatal("public_origin with index.php path should be rejected")
	}
}

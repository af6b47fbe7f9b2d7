// Package main is the entrypoint for the fedshare-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedshare/fedshare-go/internal/cache"
	"github.com/fedshare/fedshare-go/internal/config"
	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/discovery"
	"github.com/fedshare/fedshare-go/internal/federation/events"
	"github.com/fedshare/fedshare-go/internal/federation/inbound"
	"github.com/fedshare/fedshare-go/internal/federation/notify"
	"github.com/fedshare/fedshare-go/internal/federation/provider"
	"github.com/fedshare/fedshare-go/internal/federation/token"
	"github.com/fedshare/fedshare-go/internal/httpclient"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
	"github.com/fedshare/fedshare-go/internal/retry"
	"github.com/fedshare/fedshare-go/internal/server"
	"github.com/fedshare/fedshare-go/internal/store"

	// Register cache drivers
	_ "github.com/fedshare/fedshare-go/internal/cache/loader"

	// Register store drivers
	_ "github.com/fedshare/fedshare-go/internal/store/memory"
	_ "github.com/fedshare/fedshare-go/internal/store/sqlite"
)

// dataStore is what the wiring needs from a store driver.
type dataStore interface {
	store.Driver
	store.ShareStore
	store.ReshareStore
	store.RetryStore
	store.MountStore
}

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin of this instance (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or memory (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Data directory for the store (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, or selfsigned (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	outgoingEnabled := flag.String("outgoing-enabled", "", "Allow outgoing federated shares: true or false (overrides config)")
	incomingEnabled := flag.String("incoming-enabled", "", "Allow incoming federated shares: true or false (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors, replaced once the
	// configured level is known.
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:      listenAddr,
			PublicOrigin:    publicOrigin,
			StoreDriver:     storeDriver,
			StoreDataDir:    storeDataDir,
			TLSMode:         tlsMode,
			LoggingLevel:    loggingLevel,
			OutgoingEnabled: outgoingEnabled,
			IncomingEnabled: incomingEnabled,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	// Persistence
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	db, ok := driver.(dataStore)
	if !ok {
		logger.Error("store driver lacks required interfaces", "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	if err := db.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Discovery cache (memory unless configured otherwise)
	cacheInstance, err := cache.New(cfg.Cache.Driver, cfg.Cache.Drivers[cfg.Cache.Driver])
	if err != nil {
		logger.Error("failed to create cache", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = cacheInstance.Close() }()

	// Outbound side
	httpClient := httpclient.New(&cfg.OutboundHTTP)
	discoveryClient := discovery.NewClient(httpClient, cacheInstance, logger)
	retryInterval := time.Duration(cfg.Retry.IntervalSeconds) * time.Second
	notifier := notify.New(httpClient, discoveryClient, db, cfg.PublicOrigin, retryInterval, logger)

	// Share engine
	resolver := address.NewResolver(cfg.PublicOrigin, nil)
	shareProvider := provider.New(provider.Options{
		Shares:          db,
		Reshares:        db,
		Mounts:          db,
		Notifier:        notifier,
		Resolver:        resolver,
		Tokens:          token.NewGenerator(),
		Events:          events.LogPublisher{Logger: logger},
		Logger:          logger,
		OutgoingEnabled: cfg.Federation.OutgoingEnabled,
		IncomingEnabled: cfg.Federation.IncomingEnabled,
	})

	var users inbound.UserDirectory = inbound.AllUsers{}
	if len(cfg.Federation.Users) > 0 {
		users = inbound.StaticUsers(cfg.Federation.Users)
	}
	handler := inbound.NewHandler(shareProvider, db, db, db, users, resolver, logger)

	// Redelivery of failed update notifications
	runner := retry.New(db, notifier, &cfg.Retry, logger)

	srv, err := server.New(cfg, logger, &server.Deps{
		Inbound:   handler,
		Discovery: discovery.NewHandler(cfg.PublicOrigin),
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fedshare/fedshare-go/internal/config"
	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/discovery"
	"github.com/fedshare/fedshare-go/internal/federation/inbound"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds the handlers the server exposes.
type Deps struct {
	// Inbound serves the federation endpoints on both wires.
	Inbound *inbound.Handler

	// Discovery serves this instance's own discovery documents.
	Discovery *discovery.Handler
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	deps       *Deps
	httpServer *http.Server
}

// New creates a server. Returns an error if required dependencies are
// missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logutil.OrNoop(logger),
		deps:   deps,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start runs the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"public_origin", s.cfg.PublicOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "", "off":
		return s.httpServer.ListenAndServe()

	case "static", "selfsigned":
		tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := tlsManager.GetTLSConfig(hostnameFromOrigin(s.cfg.PublicOrigin))
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig

		// Certificates live in TLSConfig; ListenAndServeTLS with empty
		// paths uses them.
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// hostnameFromOrigin extracts the bare hostname for TLS certificate
// generation: no scheme, no port.
func hostnameFromOrigin(origin string) string {
	host := address.StripScheme(address.CleanHost(origin))
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end > 0 {
			return host[1:end]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx]
	}
	return host
}

func validateDeps(deps *Deps) error {
	if deps == nil {
		return fmt.Errorf("%w: deps is nil", ErrMissingDep)
	}
	if deps.Inbound == nil {
		return fmt.Errorf("%w: Inbound", ErrMissingDep)
	}
	if deps.Discovery == nil {
		return fmt.Errorf("%w: Discovery", ErrMissingDep)
	}
	return nil
}

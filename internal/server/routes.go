package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fedshare/fedshare-go/internal/federation/discovery"
)

// LegacyShareEndpointV1 is the pre-v2 OCS path some older senders still
// post to. Both versions dispatch to the same handlers.
const LegacyShareEndpointV1 = "/ocs/v1.php/cloud/shares"

// routes creates the chi router with every endpoint group mounted.
// All federation endpoints are public: the callers are remote servers
// authenticating per-share via tokens, not sessions.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// RequestID must come first so the access log can include it.
	// Recoverer sits inside the access log wrapper so panics are logged
	// with the 500 they produce.
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	// Discovery documents, always at the host root.
	r.Get("/.well-known/ocm", s.deps.Discovery.WellKnown)
	r.Get("/ocs-provider/", s.deps.Discovery.ServiceDocument)
	r.Get("/ocs-provider", s.deps.Discovery.ServiceDocument)

	// Modern push wire.
	r.Mount("/ocm", s.deps.Inbound.OCMRoutes())

	// Legacy OCS wire, at the endpoint the service document advertises
	// and at the v1 spelling.
	r.Mount(discovery.DefaultShareEndpoint, s.deps.Inbound.LegacyRoutes())
	r.Mount(LegacyShareEndpointV1, s.deps.Inbound.LegacyRoutes())

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

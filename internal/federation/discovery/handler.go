package discovery

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Handler serves this instance's own discovery documents.
type Handler struct {
	publicOrigin string
}

// NewHandler creates a handler for the given public origin.
func NewHandler(publicOrigin string) *Handler {
	return &Handler{publicOrigin: strings.TrimSuffix(publicOrigin, "/")}
}

// ServiceDocument handles GET /ocs-provider/.
func (h *Handler) ServiceDocument(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"version": 2,
		"services": map[string]any{
			"FEDERATED_SHARING": map[string]any{
				"version": 1,
				"endpoints": map[string]string{
					"share":  DefaultShareEndpoint,
					"webdav": DefaultWebDAVEndpoint,
				},
			},
		},
	}
	writeJSON(w, doc)
}

// WellKnown handles GET /.well-known/ocm.
func (h *Handler) WellKnown(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"enabled":    true,
		"apiVersion": "1.0-proposal1",
		"endPoint":   h.publicOrigin + "/ocm",
		"resourceTypes": []map[string]any{
			{
				"name":       "file",
				"shareTypes": []string{"user"},
				"protocols": map[string]string{
					"webdav": DefaultWebDAVEndpoint,
				},
			},
		},
	}
	writeJSON(w, doc)
}

func writeJSON(w http.ResponseWriter, doc any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

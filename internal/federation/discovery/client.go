package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fedshare/fedshare-go/internal/cache"
	"github.com/fedshare/fedshare-go/internal/httpclient"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
)

// Client fetches and caches remote discovery documents.
type Client struct {
	httpClient *httpclient.Client
	cache      cache.Cache
	logger     *slog.Logger
}

// NewClient creates a discovery client. The cache is required so repeated
// deliveries to the same remote do not refetch the service document.
func NewClient(httpClient *httpclient.Client, c cache.Cache, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      c,
		logger:     logutil.OrNoop(logger),
	}
}

// BaseURL normalizes a remote host to a fetchable base URL. Hosts stored
// without a scheme get https.
func BaseURL(remote string) string {
	remote = strings.TrimSuffix(remote, "/")
	if !strings.Contains(remote, "://") {
		return "https://" + remote
	}
	return remote
}

// ResolveEndpoints returns the share and webdav endpoints for a remote.
// Failures of any kind degrade to the defaults; the caller's operation
// proceeds either way.
func (c *Client) ResolveEndpoints(ctx context.Context, remote string) Endpoints {
	base := BaseURL(remote)

	cacheKey := "endpoints:" + base
	if data, err := c.cache.Get(ctx, cacheKey); err == nil {
		var eps Endpoints
		if err := json.Unmarshal(data, &eps); err == nil {
			return eps
		}
	}

	eps, err := c.fetchEndpoints(ctx, base)
	if err != nil {
		c.logger.Debug("service document unavailable, using default endpoints",
			"remote", base, "error", err)
		return DefaultEndpoints()
	}

	if data, err := json.Marshal(eps); err == nil {
		_ = c.cache.Set(ctx, cacheKey, data, cache.TTLEndpoints)
	}
	return eps
}

func (c *Client) fetchEndpoints(ctx context.Context, base string) (Endpoints, error) {
	data, resp, err := c.httpClient.GetJSON(ctx, base+"/ocs-provider/")
	if err != nil {
		return Endpoints{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Endpoints{}, fmt.Errorf("service document returned status %d", resp.StatusCode)
	}

	var doc serviceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Endpoints{}, fmt.Errorf("invalid service document: %w", err)
	}

	advertised := doc.Services.FederatedSharing.Endpoints
	return Endpoints{
		Share:  safeEndpoint(advertised["share"], DefaultShareEndpoint),
		WebDAV: safeEndpoint(advertised["webdav"], DefaultWebDAVEndpoint),
	}, nil
}

// ModernEndpoint probes whether the remote accepts modern push
// notifications, via /.well-known/ocm. Returns the advertised endpoint
// and true when it does. The result is cached either way; probe failures
// mean the legacy wire is used.
func (c *Client) ModernEndpoint(ctx context.Context, remote string) (string, bool) {
	base := BaseURL(remote)

	// The cached value is the endpoint, empty for "not supported".
	cacheKey := "ocmprobe:" + base
	if data, err := c.cache.Get(ctx, cacheKey); err == nil {
		return string(data), len(data) > 0
	}

	endpoint := c.probeModernPush(ctx, base)
	_ = c.cache.Set(ctx, cacheKey, []byte(endpoint), cache.TTLOCMProbe)
	return endpoint, endpoint != ""
}

func (c *Client) probeModernPush(ctx context.Context, base string) string {
	data, resp, err := c.httpClient.GetJSON(ctx, base+"/.well-known/ocm")
	if err != nil || resp.StatusCode != http.StatusOK {
		return ""
	}

	var doc struct {
		Enabled  bool   `json:"enabled"`
		Endpoint string `json:"endPoint"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	if !doc.Enabled || doc.Endpoint == "" {
		return ""
	}
	return strings.TrimSuffix(doc.Endpoint, "/")
}

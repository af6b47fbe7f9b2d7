// Package discovery resolves the share and webdav endpoints a remote
// server exposes, and serves this instance's own discovery documents.
//
// Remotes advertise their endpoints in a service document at
// <remote>/ocs-provider/. Servers that predate the document, or whose
// document cannot be fetched, get the well-known default paths; endpoint
// resolution never fails the calling operation.
package discovery

import (
	"regexp"
)

// Default endpoint paths assumed when a remote advertises nothing.
const (
	DefaultShareEndpoint  = "/ocs/v2.php/cloud/shares"
	DefaultWebDAVEndpoint = "/public.php/webdav"
)

// Endpoints are the resolved paths on a remote server.
type Endpoints struct {
	Share  string `json:"share"`
	WebDAV string `json:"webdav"`
}

// DefaultEndpoints returns the fallback paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Share:  DefaultShareEndpoint,
		WebDAV: DefaultWebDAVEndpoint,
	}
}

// serviceDocument mirrors the ocs-provider payload.
type serviceDocument struct {
	Services struct {
		FederatedSharing struct {
			Endpoints map[string]string `json:"endpoints"`
		} `json:"FEDERATED_SHARING"`
	} `json:"services"`
}

// endpointPattern restricts advertised paths to plain path characters. A
// remote must not be able to steer requests at other hosts or inject
// query strings through its service document.
var endpointPattern = regexp.MustCompile(`^[/.A-Za-z0-9]+$`)

// safeEndpoint returns the advertised path when it passes the filter,
// otherwise the fallback.
func safeEndpoint(advertised, fallback string) string {
	if advertised != "" && endpointPattern.MatchString(advertised) {
		return advertised
	}
	return fallback
}

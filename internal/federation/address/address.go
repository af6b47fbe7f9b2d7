// Package address provides federated cloud id parsing and principal
// comparison. Federated ids use the format user@host, where the user is
// separated from the host by the last '@' (the user may contain '@').
package address

import (
	"fmt"
	"strings"
)

// FederatedID is a parsed cloud id. Host is cleaned of known path
// suffixes; a scheme is kept as given.
type FederatedID struct {
	User string
	Host string
}

// String reassembles the id as user@host.
func (id FederatedID) String() string {
	return id.User + "@" + id.Host
}

// ParseID splits a federated cloud id on the last '@' into user and host.
// The user may contain '@' (e.g. email-style names) but never '/' or ':'.
// Both parts must be non-empty. The host is cleaned of path remnants so
// ids pasted from browser URLs still resolve; its scheme is kept so a
// partner reachable only over plain http stays dialable.
func ParseID(id string) (FederatedID, error) {
	if id == "" {
		return FederatedID{}, fmt.Errorf("empty federated id")
	}

	idx := strings.LastIndex(id, "@")
	if idx < 0 {
		return FederatedID{}, fmt.Errorf("invalid federated id: missing '@' separator in %q", id)
	}

	user := id[:idx]
	host := id[idx+1:]

	if user == "" {
		return FederatedID{}, fmt.Errorf("invalid federated id: empty user in %q", id)
	}
	if host == "" {
		return FederatedID{}, fmt.Errorf("invalid federated id: empty host in %q", id)
	}

	if strings.ContainsAny(user, "/:") {
		return FederatedID{}, fmt.Errorf("invalid federated id: user contains '/' or ':' in %q", id)
	}

	return FederatedID{User: user, Host: CleanHost(host)}, nil
}

// CleanHost strips the path remnants a copied share URL carries: a
// trailing "/", "/index.php", or "/index.php/s/<token>". Any scheme is
// preserved.
func CleanHost(host string) string {
	if idx := strings.Index(host, "/index.php"); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimRight(host, "/")
}

// StripScheme removes an http:// or https:// prefix, yielding the form
// hosts are compared in.
func StripScheme(host string) string {
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimPrefix(host, "http://")
}

// SplitAny splits on the last '@' without validation. The host is empty
// when the principal is a bare local user name.
func SplitAny(principal string) (user, host string) {
	idx := strings.LastIndex(principal, "@")
	if idx < 0 {
		return principal, ""
	}
	return principal[:idx], principal[idx+1:]
}

// PrincipalNormalizer maps user names to a canonical form before
// comparison. Deployments with case-insensitive or aliased user ids plug
// in their own.
type PrincipalNormalizer interface {
	NormalizeUser(user string) string
}

type identityNormalizer struct{}

func (identityNormalizer) NormalizeUser(user string) string { return user }

// Resolver answers locality and identity questions against this server's
// public origin.
type Resolver struct {
	localHost  string
	normalizer PrincipalNormalizer
}

// NewResolver creates a resolver for the given public origin. A nil
// normalizer compares user names verbatim.
func NewResolver(publicOrigin string, normalizer PrincipalNormalizer) *Resolver {
	if normalizer == nil {
		normalizer = identityNormalizer{}
	}
	return &Resolver{
		localHost:  strings.ToLower(StripScheme(CleanHost(publicOrigin))),
		normalizer: normalizer,
	}
}

// LocalHost returns the cleaned lowercase host this resolver considers
// its own.
func (r *Resolver) LocalHost() string {
	return r.localHost
}

// IsLocal reports whether the given host names this server. Scheme, case
// and trailing slashes do not matter.
func (r *Resolver) IsLocal(host string) bool {
	return strings.ToLower(StripScheme(CleanHost(host))) == r.localHost
}

// IsLocalID reports whether the id's host names this server.
func (r *Resolver) IsLocalID(id FederatedID) bool {
	return r.IsLocal(id.Host)
}

// SameHost compares two hosts ignoring scheme, case and trailing slashes.
func SameHost(a, b string) bool {
	return strings.EqualFold(StripScheme(CleanHost(a)), StripScheme(CleanHost(b)))
}

// SamePrincipal reports whether two principals name the same account.
// A principal without a host is treated as local to localDefaultHost.
// Users are compared after normalization, hosts like SameHost.
func (r *Resolver) SamePrincipal(a, b string) bool {
	aUser, aHost := SplitAny(a)
	bUser, bHost := SplitAny(b)

	if aHost == "" {
		aHost = r.localHost
	}
	if bHost == "" {
		bHost = r.localHost
	}

	if r.normalizer.NormalizeUser(aUser) != r.normalizer.NormalizeUser(bUser) {
		return false
	}
	return SameHost(aHost, bHost)
}

package address

import (
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantUser string
		wantHost string
		wantErr  bool
	}{
		{
			name:     "simple user@host",
			id:       "alice@example.org",
			wantUser: "alice",
			wantHost: "example.org",
		},
		{
			name:     "email-style user (last-@ semantics)",
			id:       "alice@example.org@provider.net",
			wantUser: "alice@example.org",
			wantHost: "provider.net",
		},
		{
			name:     "https scheme preserved",
			id:       "alice@https://example.org",
			wantUser: "alice",
			wantHost: "https://example.org",
		},
		{
			name:     "http scheme preserved",
			id:       "alice@http://example.org",
			wantUser: "alice",
			wantHost: "http://example.org",
		},
		{
			name:     "trailing slash stripped",
			id:       "alice@example.org/",
			wantUser: "alice",
			wantHost: "example.org",
		},
		{
			name:     "index.php suffix stripped",
			id:       "alice@example.org/index.php",
			wantUser: "alice",
			wantHost: "example.org",
		},
		{
			name:     "public link suffix stripped",
			id:       "alice@https://example.org/index.php/s/AbC123",
			wantUser: "alice",
			wantHost: "https://example.org",
		},
		{
			name:    "empty string",
			id:      "",
			wantErr: true,
		},
		{
			name:    "missing separator",
			id:      "user",
			wantErr: true,
		},
		{
			name:    "empty user",
			id:      "@server",
			wantErr: true,
		},
		{
			name:    "empty host",
			id:      "user@",
			wantErr: true,
		},
		{
			name:    "slash in user",
			id:      "us/er@server",
			wantErr: true,
		},
		{
			name:    "colon in user",
			id:      "us:er@server",
			wantErr: true,
		},
		{
			name:    "slash but no separator",
			id:      "us/erserver",
			wantErr: true,
		},
		{
			name:    "colon but no separator",
			id:      "us:erserver",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseID(%q) = %+v, want error", tt.id, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q): %v", tt.id, err)
			}
			if got.User != tt.wantUser || got.Host != tt.wantHost {
				t.Errorf("ParseID(%q) = %q@%q, want %q@%q",
					tt.id, got.User, got.Host, tt.wantUser, tt.wantHost)
			}
		})
	}
}

func TestParseIDRoundTrip(t *testing.T) {
	protocols := []string{"", "http://", "https://"}
	suffixes := []string{"", "/", "/index.php", "/index.php/s/token123"}

	for _, proto := range protocols {
		for _, suffix := range suffixes {
			id := "alice@" + proto + "files.example.org" + suffix
			got, err := ParseID(id)
			if err != nil {
				t.Errorf("ParseID(%q): %v", id, err)
				continue
			}
			// Path suffixes never leak into the host; the protocol does
			// not get rewritten.
			want := "alice@" + proto + "files.example.org"
			if got.String() != want {
				t.Errorf("ParseID(%q).String() = %q, want %q", id, got.String(), want)
			}
		}
	}
}

func TestCleanHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.org", "example.org"},
		{"https://example.org", "https://example.org"},
		{"http://example.org/", "http://example.org"},
		{"example.org/index.php", "example.org"},
		{"example.org/index.php/s/AbC", "example.org"},
		{"example.org:8443/", "example.org:8443"},
	}
	for _, tt := range tests {
		if got := CleanHost(tt.in); got != tt.want {
			t.Errorf("CleanHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.org", "example.org"},
		{"https://example.org", "example.org"},
		{"http://example.org", "example.org"},
		{"example.org:8443", "example.org:8443"},
	}
	for _, tt := range tests {
		if got := StripScheme(tt.in); got != tt.want {
			t.Errorf("StripScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameHost(t *testing.T) {
	pairs := []struct {
		a, b string
		want bool
	}{
		{"example.org", "EXAMPLE.ORG", true},
		{"https://example.org", "example.org", true},
		{"http://example.org/", "example.org", true},
		{"example.org", "example.org:8443", false},
		{"example.org", "other.org", false},
	}
	for _, tt := range pairs {
		if got := SameHost(tt.a, tt.b); got != tt.want {
			t.Errorf("SameHost(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestResolverSamePrincipal(t *testing.T) {
	r := NewResolver("https://cloud.example.org/", nil)

	tests := []struct {
		a, b string
		want bool
	}{
		{"alice@cloud.example.org", "alice@CLOUD.example.org", true},
		{"alice@https://cloud.example.org", "alice@cloud.example.org/", true},
		{"alice", "alice@cloud.example.org", true},
		{"alice", "alice@other.example.org", false},
		{"alice@cloud.example.org", "bob@cloud.example.org", false},
		{"Alice@cloud.example.org", "alice@cloud.example.org", false},
	}
	for _, tt := range tests {
		if got := r.SamePrincipal(tt.a, tt.b); got != tt.want {
			t.Errorf("SamePrincipal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

type lowerNormalizer struct{}

func (lowerNormalizer) NormalizeUser(user string) string { return strings.ToLower(user) }

func TestResolverCustomNormalizer(t *testing.T) {
	r := NewResolver("cloud.example.org", lowerNormalizer{})

	if !r.SamePrincipal("Alice@cloud.example.org", "alice@cloud.example.org") {
		t.Error("normalizer not applied to user comparison")
	}
}

func TestResolverIsLocal(t *testing.T) {
	r := NewResolver("https://cloud.example.org", nil)

	if !r.IsLocal("cloud.example.org") {
		t.Error("IsLocal(own host) = false")
	}
	if !r.IsLocal("https://CLOUD.example.org/") {
		t.Error("IsLocal should ignore scheme and case")
	}
	if r.IsLocal("other.example.org") {
		t.Error("IsLocal(other host) = true")
	}

	id, err := ParseID("bob@cloud.example.org/index.php")
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsLocalID(id) {
		t.Error("IsLocalID = false for own host")
	}
}

func TestSplitAny(t *testing.T) {
	user, host := SplitAny("alice")
	if user != "alice" || host != "" {
		t.Errorf("SplitAny(alice) = %q, %q", user, host)
	}
	user, host = SplitAny("alice@example.org@provider.net")
	if user != "alice@example.org" || host != "provider.net" {
		t.Errorf("SplitAny = %q, %q", user, host)
	}
}

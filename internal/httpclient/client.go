// Package httpclient provides the outbound HTTP client used for all calls to
// federation partners: bounded timeouts, SSRF protection, size-limited reads,
// and tightly constrained redirect following.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fedshare/fedshare-go/internal/config"
)

var (
	ErrSSRFBlocked         = errors.New("request blocked by SSRF protection")
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrResponseTooLarge    = errors.New("response body too large")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrRedirectBlocked     = errors.New("redirect blocked by policy")
	ErrRedirectNotSameHost = errors.New("redirect to different host blocked")
	ErrRedirectDowngrade   = errors.New("redirect from https to http blocked")
	ErrHostUnresolvable    = errors.New("host could not be resolved")
)

// Client is a safe HTTP client for talking to autonomous remote instances.
type Client struct {
	cfg        *config.OutboundHTTPConfig
	httpClient *http.Client
}

// New creates a new outbound client. Proxy environment variables are
// deliberately ignored.
func New(cfg *config.OutboundHTTPConfig) *Client {
	if cfg == nil {
		defaults := config.Defaults().OutboundHTTP
		cfg = &defaults
	}

	c := &Client{cfg: cfg}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cfg.SSRFMode == "strict" {
				if err := checkSSRFAddr(addr); err != nil {
					return nil, err
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
		// Redirects are handled manually so the constraints below apply.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

// Do performs a request with SSRF and redirect constraints applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cfg.SSRFMode == "strict" {
		if err := checkSSRFHost(req.URL.Host); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if isRedirect(resp.StatusCode) {
		return c.followRedirect(req, resp, 0)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and reads the body with the size limit.
func (c *Client) GetJSON(ctx context.Context, urlStr string) ([]byte, *http.Response, error) {
	resp, err := c.Get(ctx, urlStr)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := c.readLimited(resp.Body)
	return body, resp, err
}

// PostForm performs a form-encoded POST (the legacy federation wire shape)
// and reads the body with the size limit.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := c.readLimited(resp.Body)
	return body, resp, err
}

// PostJSON performs a JSON POST (the modern push wire shape) and reads the
// body with the size limit.
func (c *Client) PostJSON(ctx context.Context, urlStr string, payload []byte) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := c.readLimited(resp.Body)
	return body, resp, err
}

func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// followRedirect follows one redirect under strict constraints: same host,
// no https->http downgrade, bounded depth, SSRF re-checked on the target.
func (c *Client) followRedirect(origReq *http.Request, resp *http.Response, depth int) (*http.Response, error) {
	defer resp.Body.Close()

	maxRedirects := c.cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 1
	}
	if depth >= maxRedirects {
		return nil, fmt.Errorf("%w: exceeded limit of %d", ErrTooManyRedirects, maxRedirects)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header", ErrRedirectBlocked)
	}
	redirectURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Location: %v", ErrRedirectBlocked, err)
	}
	redirectURL = origReq.URL.ResolveReference(redirectURL)

	if origReq.URL.Scheme == "https" && redirectURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectDowngrade, origReq.URL.Scheme, redirectURL.Scheme)
	}
	if !sameHost(origReq.URL.Host, redirectURL.Host) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectNotSameHost, origReq.URL.Host, redirectURL.Host)
	}
	if c.cfg.SSRFMode == "strict" {
		if err := checkSSRFHost(redirectURL.Host); err != nil {
			return nil, err
		}
	}

	newReq, err := http.NewRequestWithContext(origReq.Context(), origReq.Method, redirectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
	}
	// Auth material never crosses a redirect.
	if accept := origReq.Header.Get("Accept"); accept != "" {
		newReq.Header.Set("Accept", accept)
	}

	newResp, err := c.httpClient.Do(newReq)
	if err != nil {
		return nil, err
	}
	if isRedirect(newResp.StatusCode) {
		return c.followRedirect(newReq, newResp, depth+1)
	}
	return newResp, nil
}

func checkSSRFAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return checkSSRFHost(host)
}

// checkSSRFHost rejects loopback, private, and link-local targets so a
// crafted federated cloud ID cannot point the engine at internal services.
func checkSSRFHost(host string) error {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	// IPv6 bracket form without port, e.g. "[::1]"
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || lower == "localhost.localdomain" {
		return fmt.Errorf("%w: localhost is blocked", ErrSSRFBlocked)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !allowedIP(ip) {
			return fmt.Errorf("%w: IP %s is blocked", ErrSSRFBlocked, ip)
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Fail closed: an unresolvable host is not dialed.
		return fmt.Errorf("%w: %s: %v", ErrHostUnresolvable, host, err)
	}
	for _, ip := range ips {
		if !allowedIP(ip) {
			return fmt.Errorf("%w: %s resolves to blocked IP %s", ErrSSRFBlocked, host, ip)
		}
	}
	return nil
}

func allowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

func sameHost(a, b string) bool {
	return strings.EqualFold(normalizeHost(a), normalizeHost(b))
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	return host
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// IsSSRFError reports whether err came from SSRF blocking.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrSSRFBlocked) || errors.Is(err, ErrHostUnresolvable)
}

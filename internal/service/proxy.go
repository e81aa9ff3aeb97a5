// Package service implements the image proxy logic: target validation,
// upstream fetch and response header rewriting.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"twimg-proxy/internal/allowlist"
	"twimg-proxy/internal/client"
	"twimg-proxy/internal/model"
)

// Response header values applied to every proxied image.
const (
	allowOrigin        = "*"
	cacheControl       = "public, max-age=86400"
	defaultContentType = "image/jpeg"
)

// maxDrainBytes bounds how much of a failed upstream body is read so the
// connection can be reused.
const maxDrainBytes = 64 * 1024

var (
	// ErrMissingURL is returned when the url query parameter is absent or empty.
	ErrMissingURL = errors.New("missing url parameter")
	// ErrInvalidURL is returned when the url parameter is not an absolute URL.
	ErrInvalidURL = errors.New("invalid URL format")
)

// ForbiddenHostError is returned when the target host is not in the allowlist.
type ForbiddenHostError struct {
	Host    string
	Allowed []string
}

func (e *ForbiddenHostError) Error() string {
	return fmt.Sprintf("host %q is not in the allowlist", e.Host)
}

// UpstreamStatusError is returned when the media host answers with a non-2xx status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// ProxyService resolves image requests and fetches them from the media hosts.
type ProxyService struct {
	client *client.ImageClient
	hosts  allowlist.Set
	logger *slog.Logger
}

// NewProxyService creates a ProxyService restricted to hosts.
func NewProxyService(c *client.ImageClient, hosts allowlist.Set, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client: c,
		hosts:  hosts,
		logger: logger.With("component", "proxy_service"),
	}
}

// ResolveTarget parses raw and checks it against the allowlist.
func (s *ProxyService) ResolveTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrMissingURL
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidURL
	}

	// Hostnames are case-insensitive; browsers and URL parsers lowercase them.
	u.Host = strings.ToLower(u.Host)
	if host := u.Hostname(); !s.hosts.Allows(host) {
		return nil, &ForbiddenHostError{Host: host, Allowed: s.hosts.Hosts()}
	}
	return u, nil
}

// Forward validates the request target, fetches it, and returns the response
// with rewritten headers. The caller is responsible for closing the response body.
//
// A non-2xx upstream status yields *UpstreamStatusError; the upstream body is
// discarded. Transport failures are returned wrapped.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target, err := s.ResolveTarget(pr.RawURL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetching image",
		"host", target.Hostname(),
		"path", target.Path,
	)

	resp, err := s.client.Fetch(pr.Ctx, target.String())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
		_ = resp.Body.Close()
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	return &model.ProxyResponse{
		StatusCode: http.StatusOK,
		Header:     DeriveOutgoingHeaders(resp.Header),
		Body:       resp.Body,
	}, nil
}

// AllowedHosts returns the hosts this service proxies.
func (s *ProxyService) AllowedHosts() []string {
	return s.hosts.Hosts()
}

// DeriveOutgoingHeaders returns the headers sent to the client for a
// successful upstream response. All upstream headers pass through except the
// ones that block cross-origin embedding; upstream is left unmodified.
func DeriveOutgoingHeaders(upstream http.Header) http.Header {
	out := upstream.Clone()
	if out == nil {
		out = make(http.Header)
	}

	contentType := upstream.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	out.Set("Access-Control-Allow-Origin", allowOrigin)
	out.Set("Cache-Control", cacheControl)
	out.Set("Content-Type", contentType)
	out.Del("Content-Security-Policy")
	out.Del("X-Frame-Options")

	return out
}

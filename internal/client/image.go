// Package client provides the upstream HTTP client for the media hosts.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"twimg-proxy/internal/allowlist"
	"twimg-proxy/internal/config"
	"twimg-proxy/internal/metrics"
	"twimg-proxy/internal/model"
)

// Fixed outbound request headers. The media hosts refuse hotlinked requests
// that do not look like a browser coming from twitter.com.
const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	referer      = "https://twitter.com/"
	acceptImages = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
)

const maxRedirects = 10

// ErrRedirectNotAllowed is returned when the upstream redirects to a host outside the allowlist.
var ErrRedirectNotAllowed = errors.New("redirect to host outside the allowlist")

// ImageClient fetches images from the allowed media hosts.
type ImageClient struct {
	httpClient *http.Client
	hosts      allowlist.Set
	hints      CacheHintSink
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewImageClient creates an ImageClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewImageClient(cfg *config.Config, hosts allowlist.Set, logger *slog.Logger, m *metrics.Metrics) *ImageClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	c := &ImageClient{
		hosts:   hosts,
		logger:  logger.With("component", "image_client"),
		metrics: m,
	}
	c.withCacheHints(NewCacheHintSink(cfg))
	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// withCacheHints replaces the cache hint sink. A nil sink disables hints.
func (c *ImageClient) withCacheHints(sink CacheHintSink) *ImageClient {
	if sink == nil {
		sink = NopCacheHints{}
	}
	c.hints = sink
	return c
}

// Fetch issues a GET for target with the fixed browser headers and the
// default cache hint. The context controls the lifetime of the upstream
// request: when it is canceled (e.g. client disconnects), the fetch is too.
// The caller is responsible for closing the response body.
func (c *ImageClient) Fetch(ctx context.Context, target string) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", acceptImages)
	c.hints.ApplyCacheHint(req, DefaultCacheHint)

	return c.Do(req)
}

// Do executes an HTTP request against the upstream and returns the raw response.
// The caller is responsible for closing the response body.
func (c *ImageClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	host := req.URL.Hostname()
	c.logger.Debug("upstream request",
		"host", host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	label := metrics.HostLabel(host, c.hosts.Allows)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(label).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(label).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// checkRedirect keeps every redirect hop on an allowed host.
func (c *ImageClient) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if host := strings.ToLower(req.URL.Hostname()); !c.hosts.Allows(host) {
		return fmt.Errorf("%w: %s", ErrRedirectNotAllowed, host)
	}
	return nil
}

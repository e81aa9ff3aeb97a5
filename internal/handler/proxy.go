package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"twimg-proxy/internal/metrics"
	"twimg-proxy/internal/model"
	"twimg-proxy/internal/service"
)

// textPlain is the content type of every error response.
const textPlain = "text/plain; charset=utf-8"

const usageMessage = "missing url parameter\n\nusage: ?url=https://pbs.twimg.com/media/xxx.jpg"

// ProxyHandler relays images from the allowed media hosts.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler.
// The metrics parameter is optional; pass nil to disable rejection counters.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle fetches the image named by the url query parameter and streams it
// back with headers that allow cross-origin embedding.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		RawURL: c.QueryParam("url"),
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Image responses carry only the derived upstream headers; nosniff set
	// by the security middleware applies to the plain-text errors.
	header := c.Response().Header()
	header.Del("X-Content-Type-Options")
	for key, vals := range resp.Header {
		header[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	if req.Method == http.MethodHead {
		return nil
	}

	// The status is already on the wire, so a failed copy (client gone,
	// upstream reset) can only truncate the body.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Warn("streaming image body",
			"err", err,
			"url", pr.RawURL,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	var (
		forbidden *service.ForbiddenHostError
		upstream  *service.UpstreamStatusError
	)

	switch {
	case errors.Is(err, service.ErrMissingURL):
		h.reject("missing_url", err)
		return plainText(c, http.StatusBadRequest, usageMessage)

	case errors.Is(err, service.ErrInvalidURL):
		h.reject("invalid_url", err)
		return plainText(c, http.StatusBadRequest, "invalid URL format")

	case errors.As(err, &forbidden):
		h.reject("forbidden_host", err)
		return plainText(c, http.StatusForbidden, fmt.Sprintf("unsupported host: %s\n\nallowed: %s",
			forbidden.Host, strings.Join(forbidden.Allowed, ", ")))

	case errors.As(err, &upstream):
		h.logger.Warn("upstream status",
			"status", upstream.StatusCode,
			"url", c.QueryParam("url"),
		)
		if upstream.StatusCode == http.StatusNotModified {
			return c.NoContent(upstream.StatusCode)
		}
		return plainText(c, upstream.StatusCode, fmt.Sprintf("failed to fetch image: HTTP %d", upstream.StatusCode))
	}

	if errors.Is(err, context.Canceled) {
		h.logger.Debug("client disconnected", "url", c.QueryParam("url"))
	} else {
		h.logger.Error("proxy error",
			"err", err,
			"url", c.QueryParam("url"),
		)
	}
	return plainText(c, http.StatusInternalServerError, "proxy error: "+err.Error())
}

func (h *ProxyHandler) reject(reason string, err error) {
	h.logger.Debug("request rejected", "reason", reason, "err", err)
	if h.metrics != nil {
		h.metrics.Rejections.WithLabelValues(reason).Inc()
	}
}

func plainText(c echo.Context, status int, msg string) error {
	return c.Blob(status, textPlain, []byte(msg))
}

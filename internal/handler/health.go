package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"twimg-proxy/internal/config"
	"twimg-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	proxy   *service.ProxyService
	version Version
}

// NewHealthHandler creates a HealthHandler reporting on proxy.
func NewHealthHandler(cfg *config.Config, proxy *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, proxy: proxy, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	AllowedHosts    []string `json:"allowed_hosts"`
	UpstreamTimeout int      `json:"upstream_timeout_seconds"`
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:          "ok",
		Version:         string(h.version),
		AllowedHosts:    h.proxy.AllowedHosts(),
		UpstreamTimeout: h.cfg.Upstream.TimeoutSeconds,
	})
}

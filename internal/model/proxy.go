// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is an inbound image request. RawURL is the undecoded target
// taken from the url query parameter, empty when the parameter is absent.
type ProxyRequest struct {
	Ctx    context.Context
	RawURL string
}

// ProxyResponse is an upstream response to be streamed back to the client.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

package client

import (
	"net/http"
	"strconv"
	"time"

	"twimg-proxy/internal/config"
)

// DefaultCacheHint asks any cache between the proxy and the media hosts to
// keep images for a day regardless of upstream cache-control.
var DefaultCacheHint = CacheHint{TTL: 24 * time.Hour, CacheEverything: true}

// CacheHint describes how long an intermediate cache may keep a fetched image.
type CacheHint struct {
	TTL time.Duration
	// CacheEverything asks the cache to ignore upstream cache-control directives.
	CacheEverything bool
}

// CacheHintSink is implemented by fetch substrates that can act on a CacheHint.
// Hints only affect performance; a sink must never change whether a fetch succeeds.
type CacheHintSink interface {
	ApplyCacheHint(req *http.Request, hint CacheHint)
}

// NopCacheHints discards hints.
type NopCacheHints struct{}

// ApplyCacheHint implements CacheHintSink.
func (NopCacheHints) ApplyCacheHint(*http.Request, CacheHint) {}

// HeaderCacheHints writes the hint into a request header for a caching forward
// proxy, e.g. "X-Cache-Ttl: max-age=86400, force".
type HeaderCacheHints struct {
	Header string
}

// ApplyCacheHint implements CacheHintSink.
func (h HeaderCacheHints) ApplyCacheHint(req *http.Request, hint CacheHint) {
	if h.Header == "" || hint.TTL <= 0 {
		return
	}
	v := "max-age=" + strconv.FormatInt(int64(hint.TTL/time.Second), 10)
	if hint.CacheEverything {
		v += ", force"
	}
	req.Header.Set(h.Header, v)
}

// NewCacheHintSink returns the sink selected by upstream.cache_hint_header.
func NewCacheHintSink(cfg *config.Config) CacheHintSink {
	if cfg.Upstream.CacheHintHeader == "" {
		return NopCacheHints{}
	}
	return HeaderCacheHints{Header: cfg.Upstream.CacheHintHeader}
}

// Package transport provides the shared HTTP transport used for every
// vendor call. One pooled transport backs all invokers so connection
// reuse works across the fallback chain.
package transport

import (
	"net"
	"net/http"
	"time"
)

// settings tuned for a handful of vendor hosts called repeatedly.
var shared = &http.Transport{
	MaxIdleConns:          64,
	MaxIdleConnsPerHost:   8,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2: true,
}

// NewClient returns an HTTP client over the shared pooled transport with
// the given overall request timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: shared,
	}
}

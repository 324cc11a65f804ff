// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 20 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 32
	defaultMaxIdleConnsPerHost   = 8
)

// Options tunes the client returned by New.
type Options struct {
	// Timeout bounds a whole request including body reads. Zero means the default;
	// a negative value disables the overall timeout (progressive streams).
	Timeout time.Duration
	// Tracing wraps the transport with OpenTelemetry instrumentation.
	Tracing bool
}

// New returns a hardened HTTP client for playlist, key and segment requests.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := defaultDialTimeout
	responseHeaderTimeout := defaultResponseHeaderTimeout
	if timeout > 0 {
		if dialTimeout > timeout {
			dialTimeout = timeout
		}
		if responseHeaderTimeout > timeout {
			responseHeaderTimeout = timeout
		}
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if opts.Tracing {
		transport = otelhttp.NewTransport(transport)
	}

	client := &http.Client{Transport: transport}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session holds the HTTP state shared by every request of one
// extraction: headers, cookies, query parameters, rate limiting and tracing.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamgrab/internal/platform/httpx"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "streamgrab/1"
)

// Options configures a Client.
type Options struct {
	Headers   map[string]string
	Cookies   map[string]string
	Query     map[string]string
	UserAgent string
	// Timeout bounds playlist, key and segment requests. Progressive streams
	// opened with DoStream are only bounded by their context.
	Timeout time.Duration
	// RateLimit caps outgoing requests per second; zero disables limiting.
	RateLimit      rate.Limit
	RateLimitBurst int
	Tracing        bool
}

// Client is an HTTP client carrying session-wide request parameters. It is
// safe for concurrent use.
type Client struct {
	http    *http.Client
	stream  *http.Client
	jar     http.CookieJar
	limiter *rate.Limiter
	headers http.Header
	cookies []*http.Cookie
	query   url.Values
}

// NewClient creates a session client.
func NewClient(opts Options) (*Client, error) {
	opts = normalizeOptions(opts)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		http:    httpx.New(httpx.Options{Timeout: opts.Timeout, Tracing: opts.Tracing}),
		stream:  httpx.New(httpx.Options{Timeout: -1, Tracing: opts.Tracing}),
		jar:     jar,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		headers: make(http.Header),
		query:   make(url.Values),
	}
	c.http.Jar = jar
	c.stream.Jar = jar

	for k, v := range opts.Headers {
		c.headers.Set(k, v)
	}
	if c.headers.Get("User-Agent") == "" {
		c.headers.Set("User-Agent", opts.UserAgent)
	}
	for name, value := range opts.Cookies {
		c.cookies = append(c.cookies, &http.Cookie{Name: name, Value: value})
	}
	for k, v := range opts.Query {
		c.query.Set(k, v)
	}
	return c, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	return opts
}

// Do sends req with the session parameters applied. It waits for the rate
// limiter under the request context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(c.http, req)
}

// DoStream is Do without an overall timeout, for open-ended bodies.
func (c *Client) DoStream(req *http.Request) (*http.Response, error) {
	return c.do(c.stream, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	c.apply(req)
	return hc.Do(req)
}

// apply merges session headers, cookies and query parameters into req
// without overriding values the request already carries.
func (c *Client) apply(req *http.Request) {
	for k, vs := range c.headers {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, ck := range c.cookies {
		if _, err := req.Cookie(ck.Name); err == nil {
			continue
		}
		req.AddCookie(ck)
	}
	if len(c.query) > 0 && req.URL != nil {
		q := req.URL.Query()
		changed := false
		for k, vs := range c.query {
			if q.Has(k) {
				continue
			}
			q[k] = vs
			changed = true
		}
		if changed {
			req.URL.RawQuery = q.Encode()
		}
	}
}

// Cookies returns the cookies the jar holds for u.
func (c *Client) Cookies(u *url.URL) []*http.Cookie {
	return c.jar.Cookies(u)
}

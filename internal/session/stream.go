// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	xglog "github.com/ManuGH/streamgrab/internal/log"
)

// Stream is a playable source. Open starts delivery; closing the reader
// stops it and releases every resource the stream holds.
type Stream interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// URL identifies the stream for logging and player titles.
	URL() string
	// Kind is a short transport name such as "hls" or "http".
	Kind() string
}

// StreamDescriptor is what a plugin hands to the core: where the stream
// lives, the HTTP parameters needed to fetch it, and engine tuning.
type StreamDescriptor struct {
	URL      string
	Headers  map[string]string
	Cookies  map[string]string
	Query    map[string]string
	LiveEdge int
	Workers  int
	Timeout  time.Duration
}

// ClientOptions merges the descriptor's HTTP parameters into base.
func (d StreamDescriptor) ClientOptions(base Options) Options {
	base.Headers = merge(base.Headers, d.Headers)
	base.Cookies = merge(base.Cookies, d.Cookies)
	base.Query = merge(base.Query, d.Query)
	if d.Timeout > 0 {
		base.Timeout = d.Timeout
	}
	return base
}

func merge(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// HTTPStream is a progressive download of a single URL.
type HTTPStream struct {
	client *Client
	url    string
}

// NewHTTPStream returns a stream reading rawURL through client.
func NewHTTPStream(client *Client, rawURL string) *HTTPStream {
	return &HTTPStream{client: client, url: rawURL}
}

func (s *HTTPStream) URL() string  { return s.url }
func (s *HTTPStream) Kind() string { return "http" }

// Open issues the request and returns the response body.
func (s *HTTPStream) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.DoStream(req)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", xglog.RedactURL(s.url), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open %s: unexpected status %d", xglog.RedactURL(s.url), resp.StatusCode)
	}
	return resp.Body, nil
}

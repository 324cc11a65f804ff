// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package plugin maps user URLs to playable streams.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/streamgrab/internal/session"
)

var (
	// ErrNoPlugin is returned when no plugin accepts a URL.
	ErrNoPlugin = errors.New("no plugin can handle this URL")
	// ErrNoStreams is returned when a plugin found nothing playable.
	ErrNoStreams = errors.New("no playable streams found")
)

// Plugin turns a URL into named qualities.
type Plugin interface {
	Name() string
	CanHandle(rawURL string) bool
	Streams(ctx context.Context, client *session.Client, rawURL string) (map[string]session.Stream, error)
}

// Resolver picks the first registered plugin accepting a URL.
type Resolver struct {
	plugins []Plugin
}

// NewResolver returns a resolver trying plugins in order.
func NewResolver(plugins ...Plugin) *Resolver {
	return &Resolver{plugins: plugins}
}

// Resolve returns the plugin for rawURL.
func (r *Resolver) Resolve(rawURL string) (Plugin, error) {
	for _, p := range r.plugins {
		if p.CanHandle(rawURL) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPlugin, rawURL)
}

// Streams resolves rawURL and asks the plugin for its streams.
func (r *Resolver) Streams(ctx context.Context, client *session.Client, rawURL string) (Plugin, map[string]session.Stream, error) {
	p, err := r.Resolve(rawURL)
	if err != nil {
		return nil, nil, err
	}
	streams, err := p.Streams(ctx, client, rawURL)
	if err != nil {
		return p, nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	if len(streams) == 0 {
		return p, nil, fmt.Errorf("%s: %w", p.Name(), ErrNoStreams)
	}
	return p, streams, nil
}

// stripScheme removes a pseudo-scheme prefix such as "hls://" and defaults
// the remaining URL to https when it carries no scheme of its own.
func stripScheme(rawURL string, prefixes ...string) (string, bool) {
	lower := strings.ToLower(rawURL)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			rest := rawURL[len(p):]
			return withScheme(rest), true
		}
	}
	return rawURL, false
}

func withScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	if u, err := url.Parse(rawURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return rawURL
	}
	return "https://" + rawURL
}

func isHTTP(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

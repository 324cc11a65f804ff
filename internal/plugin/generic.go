// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plugin

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamgrab/internal/hls"
	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/session"
)

// HLS handles hls://, hlsvariant:// and plain http(s) URLs whose path ends
// in .m3u8.
type HLS struct {
	cfg    hls.Config
	logger zerolog.Logger
}

// NewHLS returns the generic HLS plugin.
func NewHLS(cfg hls.Config) *HLS {
	return &HLS{cfg: cfg, logger: xglog.WithComponent("hls")}
}

func (p *HLS) Name() string { return "hls" }

func (p *HLS) CanHandle(rawURL string) bool {
	_, ok := p.target(rawURL)
	return ok
}

func (p *HLS) target(rawURL string) (string, bool) {
	if u, ok := stripScheme(rawURL, "hlsvariant://", "hls://"); ok {
		return u, true
	}
	u, ok := isHTTP(rawURL)
	if !ok {
		return "", false
	}
	return rawURL, strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

func (p *HLS) Streams(ctx context.Context, client *session.Client, rawURL string) (map[string]session.Stream, error) {
	target, _ := p.target(rawURL)
	return hls.ParseVariantPlaylist(ctx, client, target, p.cfg, p.logger)
}

// HTTPStream handles httpstream:// URLs as a single progressive download.
type HTTPStream struct{}

func (HTTPStream) Name() string { return "httpstream" }

func (HTTPStream) CanHandle(rawURL string) bool {
	_, ok := stripScheme(rawURL, "httpstream://")
	return ok
}

func (HTTPStream) Streams(_ context.Context, client *session.Client, rawURL string) (map[string]session.Stream, error) {
	target, _ := stripScheme(rawURL, "httpstream://")
	s := session.NewHTTPStream(client, target)
	return map[string]session.Stream{hls.QualityLive: s, hls.QualityBest: s, hls.QualityWorst: s}, nil
}

// Default returns the built-in plugins in resolution order.
func Default(cfg hls.Config) *Resolver {
	return NewResolver(NewHLS(cfg), HTTPStream{})
}

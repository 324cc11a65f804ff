// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamgrab/internal/m3u8"
	"github.com/ManuGH/streamgrab/internal/session"
)

const (
	QualityBest  = "best"
	QualityWorst = "worst"
	// QualityLive names the only stream of a media playlist.
	QualityLive = "live"
)

func playable(variants []*m3u8.Variant) []*m3u8.Variant {
	out := make([]*m3u8.Variant, 0, len(variants))
	for _, v := range variants {
		if v != nil && !v.IFrame && v.URI != "" {
			out = append(out, v)
		}
	}
	return out
}

// BestVariant picks the playable variant with the highest bandwidth.
func BestVariant(variants []*m3u8.Variant) (*m3u8.Variant, error) {
	var best *m3u8.Variant
	for _, v := range playable(variants) {
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return nil, ErrNoVariants
	}
	return best, nil
}

// WorstVariant picks the playable variant with the lowest bandwidth.
func WorstVariant(variants []*m3u8.Variant) (*m3u8.Variant, error) {
	var worst *m3u8.Variant
	for _, v := range playable(variants) {
		if worst == nil || v.Bandwidth < worst.Bandwidth {
			worst = v
		}
	}
	if worst == nil {
		return nil, ErrNoVariants
	}
	return worst, nil
}

// QualityName derives a display name: resolution height ("720p", "1080p60"
// above 30 fps), else bandwidth in kbit/s ("1500k").
func QualityName(v *m3u8.Variant) string {
	if v.Resolution != nil && v.Resolution.Height > 0 {
		name := fmt.Sprintf("%dp", v.Resolution.Height)
		if v.FrameRate > 30 {
			name += fmt.Sprintf("%d", int(math.Round(v.FrameRate)))
		}
		return name
	}
	if v.Bandwidth > 0 {
		return fmt.Sprintf("%dk", v.Bandwidth/1000)
	}
	if v.Name != "" {
		return strings.ToLower(v.Name)
	}
	return QualityLive
}

// QualityNames maps unique quality names, plus best and worst, to playable
// variants. Duplicate names get "_alt", "_alt2", ... suffixes in playlist
// order.
func QualityNames(variants []*m3u8.Variant) map[string]*m3u8.Variant {
	out := make(map[string]*m3u8.Variant)
	for _, v := range playable(variants) {
		base := QualityName(v)
		name := base
		for n := 1; ; n++ {
			if _, taken := out[name]; !taken {
				break
			}
			if n == 1 {
				name = base + "_alt"
			} else {
				name = fmt.Sprintf("%s_alt%d", base, n)
			}
		}
		out[name] = v
	}
	if best, err := BestVariant(variants); err == nil {
		out[QualityBest] = best
	}
	if worst, err := WorstVariant(variants); err == nil {
		out[QualityWorst] = worst
	}
	return out
}

// SelectVariant returns a selector for a quality name. The empty name means
// best.
func SelectVariant(name string) VariantSelector {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", QualityBest:
		return BestVariant
	case QualityWorst:
		return WorstVariant
	}
	return func(variants []*m3u8.Variant) (*m3u8.Variant, error) {
		names := QualityNames(variants)
		if v, ok := names[name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrVariantNotFound, name, strings.Join(SortedNames(names), ", "))
	}
}

// SortedNames lists quality names ordered by bandwidth, aliases last.
func SortedNames[T any](names map[string]T) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	rank := func(n string) int {
		switch n {
		case QualityWorst:
			return 1
		case QualityBest:
			return 2
		}
		return 0
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		bi, bj := qualityWeight(out[i]), qualityWeight(out[j])
		if bi != bj {
			return bi < bj
		}
		return out[i] < out[j]
	})
	return out
}

// qualityWeight orders "480p" < "720p" < "720p60" < "1080p" and "800k" < "1500k".
func qualityWeight(name string) float64 {
	name, _, _ = strings.Cut(name, "_alt")
	if kbps, ok := strings.CutSuffix(name, "k"); ok {
		n, _ := strconv.Atoi(kbps)
		return float64(n)
	}
	height, fps, ok := strings.Cut(name, "p")
	if !ok {
		return 0
	}
	h, _ := strconv.Atoi(height)
	f, _ := strconv.Atoi(fps)
	return float64(h)*1000 + float64(f)
}

// ParseVariantPlaylist loads playlistURL and returns one stream per quality.
// A media playlist yields a single "live" stream with best and worst aliases.
func ParseVariantPlaylist(ctx context.Context, client Doer, playlistURL string, cfg Config, logger zerolog.Logger) (map[string]session.Stream, error) {
	cfg = cfg.withDefaults()
	retry := newRetryPolicy(cfg, logger)
	resp, err := retry.do(ctx, "playlist", playlistURL, func(ctx context.Context) (*response, error) {
		return get(ctx, client, playlistURL, nil)
	})
	if err != nil {
		return nil, &EngineError{Op: "load playlist", URL: playlistURL, Err: err}
	}
	pl, err := m3u8.Parse(bytes.NewReader(resp.body), m3u8.WithBaseURI(resp.finalURL), m3u8.WithLogger(logger))
	if err != nil {
		return nil, &EngineError{Op: "parse playlist", URL: playlistURL, Err: err}
	}

	engine := NewEngine(client, cfg, logger)
	if !pl.IsMaster {
		s := NewStream(engine, resp.finalURL)
		return map[string]session.Stream{QualityLive: s, QualityBest: s, QualityWorst: s}, nil
	}

	names := QualityNames(pl.Variants)
	if len(names) == 0 {
		return nil, &EngineError{Op: "select variant", URL: playlistURL, Err: ErrNoVariants}
	}
	out := make(map[string]session.Stream, len(names))
	for name, v := range names {
		out[name] = NewStream(engine, v.URI)
	}
	return out, nil
}

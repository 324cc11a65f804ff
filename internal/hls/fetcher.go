// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/m3u8"
	"github.com/ManuGH/streamgrab/internal/metrics"
	"github.com/ManuGH/streamgrab/internal/telemetry"
)

const mapCacheSize = 4

// Fetched is one decoded segment. MapID identifies the initialization
// section epoch; the writer prepends Map whenever MapID changes.
type Fetched struct {
	Sequence int64
	MapID    string
	Map      []byte
	Data     []byte
}

// Fetcher downloads and decrypts segments. It is safe for concurrent use.
type Fetcher struct {
	client Doer
	keys   *KeyCache
	retry  *retryPolicy
	tracer trace.Tracer
	logger zerolog.Logger

	mapMu    sync.Mutex
	maps     map[string][]byte
	mapOrder []string
	mapGroup singleflight.Group
}

// NewFetcher creates a fetcher sharing client and keys.
func NewFetcher(client Doer, keys *KeyCache, cfg Config, logger zerolog.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	return newFetcher(client, keys, newRetryPolicy(cfg, logger), logger)
}

func newFetcher(client Doer, keys *KeyCache, retry *retryPolicy, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		keys:   keys,
		retry:  retry,
		tracer: telemetry.Tracer("streamgrab/hls"),
		logger: logger,
		maps:   make(map[string][]byte),
	}
}

// Fetch downloads seg, its initialization section when present, and
// decrypts both. It returns the whole segment or an error, never a part.
func (f *Fetcher) Fetch(ctx context.Context, seg *m3u8.Segment) (*Fetched, error) {
	ctx, span := f.tracer.Start(ctx, "hls.segment.fetch",
		trace.WithAttributes(telemetry.SegmentAttributes(seg.Sequence, xglog.RedactURL(seg.URI), seg.Key.Encrypted())...))
	defer span.End()

	start := time.Now()
	out, err := f.fetch(ctx, seg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, context.Canceled):
			metrics.IncSegmentFetch("cancelled")
		default:
			metrics.IncSegmentFetch("skipped")
		}
		return nil, err
	}
	metrics.IncSegmentFetch("ok")
	metrics.ObserveSegmentFetch(time.Since(start))
	return out, nil
}

func (f *Fetcher) fetch(ctx context.Context, seg *m3u8.Segment) (*Fetched, error) {
	keyBytes, iv, err := f.keyFor(ctx, seg.Key, seg.Sequence)
	if err != nil {
		return nil, err
	}

	out := &Fetched{Sequence: seg.Sequence}
	if seg.Map != nil {
		// The map is encrypted with the key current at its declaration,
		// which need not be the segment's.
		mapKey, mapIV, err := f.keyFor(ctx, seg.Map.Key, seg.Sequence)
		if err != nil {
			return nil, fmt.Errorf("init section: %w", err)
		}
		id := mapID(seg.Map, seg.Map.Key)
		data, err := f.initSection(ctx, seg.Map, id, mapKey, mapIV)
		if err != nil {
			return nil, fmt.Errorf("init section: %w", err)
		}
		out.MapID = id
		out.Map = data
	}

	resp, err := f.retry.do(ctx, "segment", seg.URI, func(ctx context.Context) (*response, error) {
		return get(ctx, f.client, seg.URI, seg.ByteRange)
	})
	if err != nil {
		return nil, err
	}
	body := resp.body

	if keyBytes != nil {
		body, err = DecryptAES128CBC(body, keyBytes, iv)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
	}
	out.Data = body
	return out, nil
}

// keyFor resolves the key bytes and IV for key, or nil for clear content.
func (f *Fetcher) keyFor(ctx context.Context, key *m3u8.Key, sequence int64) ([]byte, []byte, error) {
	if !key.Encrypted() {
		return nil, nil, nil
	}
	if key.Method != m3u8.KeyMethodAES128 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedEncryption, key.Method)
	}
	k, err := f.keys.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return k, SegmentIV(key, sequence), nil
}

// initSection returns the decoded map for id, fetching it once.
func (f *Fetcher) initSection(ctx context.Context, m *m3u8.Map, id string, key, iv []byte) ([]byte, error) {
	if b, ok := f.cachedMap(id); ok {
		return b, nil
	}
	v, err, _ := f.mapGroup.Do(id, func() (any, error) {
		if b, ok := f.cachedMap(id); ok {
			return b, nil
		}
		resp, err := f.retry.do(ctx, "map", m.URI, func(ctx context.Context) (*response, error) {
			return get(ctx, f.client, m.URI, m.ByteRange)
		})
		if err != nil {
			return nil, err
		}
		data := resp.body
		if key != nil {
			data, err = DecryptAES128CBC(data, key, iv)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
			}
		}
		f.storeMap(id, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *Fetcher) cachedMap(id string) ([]byte, bool) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	b, ok := f.maps[id]
	return b, ok
}

func (f *Fetcher) storeMap(id string, data []byte) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	if _, ok := f.maps[id]; ok {
		return
	}
	f.maps[id] = data
	f.mapOrder = append(f.mapOrder, id)
	if len(f.mapOrder) > mapCacheSize {
		delete(f.maps, f.mapOrder[0])
		f.mapOrder = f.mapOrder[1:]
	}
}

// mapID identifies a map epoch by URI, range and key.
func mapID(m *m3u8.Map, key *m3u8.Key) string {
	id := m.URI
	if m.ByteRange != nil {
		id += "@" + m.ByteRange.String()
	}
	if key.Encrypted() {
		id += "#" + key.URI + "/" + hex.EncodeToString(key.IV)
	}
	return id
}

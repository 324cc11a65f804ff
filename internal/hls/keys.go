// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/m3u8"
	"github.com/ManuGH/streamgrab/internal/metrics"
)

const aesKeySize = 16

// KeyCache fetches decryption keys at most once per (URI, key format).
// Concurrent callers for the same key share one request; failures are not
// cached.
type KeyCache struct {
	client Doer
	retry  *retryPolicy
	logger zerolog.Logger

	mu    sync.RWMutex
	keys  map[string][]byte
	group singleflight.Group
}

// KeyCacheOption configures a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithKeyLogger sets the logger used for key fetch events.
func WithKeyLogger(l zerolog.Logger) KeyCacheOption {
	return func(c *KeyCache) { c.logger = l }
}

// WithKeyRetry sets the retry budget for key requests.
func WithKeyRetry(cfg Config) KeyCacheOption {
	return func(c *KeyCache) { c.retry = newRetryPolicy(cfg, c.logger) }
}

func withRetryPolicy(p *retryPolicy) KeyCacheOption {
	return func(c *KeyCache) { c.retry = p }
}

// NewKeyCache creates an empty cache.
func NewKeyCache(client Doer, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		client: client,
		logger: xglog.WithComponent("hls.keys"),
		keys:   make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = newRetryPolicy(DefaultConfig(), c.logger)
	}
	return c
}

func cacheID(key *m3u8.Key) string {
	return key.KeyFormat + "\x00" + key.URI
}

// Get returns the 16-byte key material for key.
func (c *KeyCache) Get(ctx context.Context, key *m3u8.Key) ([]byte, error) {
	if key == nil || key.URI == "" {
		return nil, fmt.Errorf("%w: key has no URI", ErrCrypto)
	}
	id := cacheID(key)

	if b, ok := c.lookup(id); ok {
		return b, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		if b, ok := c.lookup(id); ok {
			return b, nil
		}
		resp, err := c.retry.do(ctx, "key", key.URI, func(ctx context.Context) (*response, error) {
			return get(ctx, c.client, key.URI, nil)
		})
		if err != nil {
			metrics.IncKeyFetch(false)
			return nil, err
		}
		if len(resp.body) != aesKeySize {
			metrics.IncKeyFetch(false)
			return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(resp.body))
		}
		metrics.IncKeyFetch(true)

		c.mu.Lock()
		c.keys[id] = resp.body
		c.mu.Unlock()

		c.logger.Debug().
			Str(xglog.FieldEvent, "hls.key_fetched").
			Str(xglog.FieldURL, xglog.RedactURL(key.URI)).
			Msg("decryption key fetched")
		return resp.body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch key %s: %w", ErrCrypto, xglog.RedactURL(key.URI), err)
	}
	return v.([]byte), nil
}

func (c *KeyCache) lookup(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.keys[id]
	return b, ok
}

// Len returns the number of cached keys.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls implements the HLS streaming engine: playlist following,
// concurrent segment download with AES-128 decryption, and ordered hand-off
// of the decoded bytes to a writer.
package hls

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/m3u8"
)

// cryptoFailureThreshold consecutive undecryptable segments end the stream.
const cryptoFailureThreshold = 3

// Engine streams HLS playlists. One engine may run several playlists in
// sequence; keys are cached for its lifetime.
type Engine struct {
	client Doer
	cfg    Config
	keys   *KeyCache
	logger zerolog.Logger
}

// NewEngine creates an engine issuing requests through client.
func NewEngine(client Doer, cfg Config, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		client: client,
		cfg:    cfg,
		keys:   NewKeyCache(client, WithKeyLogger(logger), WithKeyRetry(cfg)),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run follows playlistURL and writes decoded segments to w in playlist order
// until the playlist ends, ctx is cancelled, or a fatal error occurs.
//
// It returns nil on a clean end, context.Canceled when cancelled, an
// *EngineError for fatal stream failures, or an error wrapping
// output.ErrSinkClosed when w fails.
func (e *Engine) Run(ctx context.Context, playlistURL string, w io.Writer) error {
	logger := e.logger.With().Str(xglog.FieldURL, xglog.RedactURL(playlistURL)).Logger()
	start := time.Now()

	retry := newRetryPolicy(e.cfg, logger)
	fetcher := newFetcher(e.client, e.keys, retry, logger)
	rl := newReloader(e.client, e.cfg, retry, playlistURL, logger)
	sw := newSegmentWriter(w, cryptoFailureThreshold, logger)
	q := newOrderedQueue(e.cfg.Workers)
	jobs := make(chan *m3u8.Segment, e.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		err := rl.run(gctx, func(ctx context.Context, seg *m3u8.Segment) error {
			q.announce(seg.Sequence)
			select {
			case jobs <- seg:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		q.finish(err)
		return nil
	})

	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			for seg := range jobs {
				f, err := fetcher.Fetch(gctx, seg)
				r := result{sequence: seg.Sequence, fetched: f}
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					r.err = &SegmentError{Sequence: seg.Sequence, Err: err}
				}
				if err := q.deposit(gctx, r); err != nil {
					return nil
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		return sw.run(gctx, q)
	})

	err := g.Wait()
	switch {
	case err == nil:
		logger.Info().
			Int64("bytes", sw.written).
			Dur("elapsed", time.Since(start)).
			Msg("stream ended")
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Info().Int64("bytes", sw.written).Msg("stream cancelled")
		return ctx.Err()
	default:
		logger.Error().Err(err).Int64("bytes", sw.written).Msg("stream failed")
		return err
	}
}

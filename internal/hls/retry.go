// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/metrics"
)

// retryPolicy retries retryable request failures with exponential backoff.
// The backoff ceiling follows the playlist's target duration once known.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	ceiling  atomic.Int64 // target duration in nanoseconds, 0 when unknown
	logger   zerolog.Logger
}

func newRetryPolicy(cfg Config, logger zerolog.Logger) *retryPolicy {
	return &retryPolicy{
		attempts: cfg.Attempts,
		base:     cfg.RetryBase,
		max:      cfg.RetryMax,
		logger:   logger,
	}
}

func (p *retryPolicy) setTargetDuration(seconds float64) {
	p.ceiling.Store(int64(seconds * float64(time.Second)))
}

func (p *retryPolicy) maxInterval() time.Duration {
	limit := p.max
	if c := time.Duration(p.ceiling.Load()); c > 0 && (limit <= 0 || c < limit) {
		limit = c
	}
	if limit < p.base {
		limit = p.base
	}
	return limit
}

func (p *retryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.base
	b.MaxInterval = p.maxInterval()
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.Reset()
	return b
}

// do runs fetch, retrying up to the configured number of attempts. kind
// labels metrics and logs (segment, map, key, playlist).
func (p *retryPolicy) do(ctx context.Context, kind, rawURL string, fetch func(context.Context) (*response, error)) (*response, error) {
	attempt := 0
	op := func() (*response, error) {
		attempt++
		resp, err := fetch(ctx)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.IncRetry(kind)
			p.logger.Info().
				Err(err).
				Str(xglog.FieldEvent, "hls.retry").
				Str("kind", kind).
				Str(xglog.FieldURL, xglog.RedactURL(rawURL)).
				Int(xglog.FieldAttempt, attempt).
				Int("max_attempts", attempts).
				Dur("wait", wait).
				Msg("retrying request")
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return resp, err
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/m3u8"
	"github.com/ManuGH/streamgrab/internal/metrics"
	"github.com/ManuGH/streamgrab/internal/resilience"
)

// reloaderState is the playlist lifecycle.
type reloaderState string

const (
	stateStarting reloaderState = "starting"
	stateLive     reloaderState = "live"
	stateVOD      reloaderState = "vod"
	stateDraining reloaderState = "draining"
	stateClosed   reloaderState = "closed"
)

const (
	maxVariantDepth  = 3
	maxReloadFactor  = 3
	unchangedBackoff = 1.5
)

// emitFunc hands one segment to the scheduler. It blocks for backpressure.
type emitFunc func(ctx context.Context, seg *m3u8.Segment) error

// reloader follows a playlist and emits every new segment exactly once, in
// sequence order.
type reloader struct {
	client Doer
	cfg    Config
	retry  *retryPolicy
	logger zerolog.Logger

	url      string
	state    reloaderState
	lastSeq  int64
	started  bool
	lastBody []byte
	interval time.Duration
	stall    *resilience.CircuitBreaker
}

func newReloader(client Doer, cfg Config, retry *retryPolicy, playlistURL string, logger zerolog.Logger) *reloader {
	return &reloader{
		client: client,
		cfg:    cfg,
		retry:  retry,
		logger: logger,
		url:    playlistURL,
		state:  stateStarting,
		stall:  resilience.NewCircuitBreaker("hls_playlist", cfg.PlaylistReloadAttempts),
	}
}

func (r *reloader) setState(s reloaderState) {
	if r.state == s {
		return
	}
	r.logger.Debug().
		Str(xglog.FieldOldState, string(r.state)).
		Str(xglog.FieldNewState, string(s)).
		Msg("playlist state changed")
	r.state = s
}

// run drives the state machine until the playlist ends, ctx is cancelled or
// a fatal error occurs.
func (r *reloader) run(ctx context.Context, emit emitFunc) error {
	defer r.setState(stateClosed)

	pl, err := r.resolveMedia(ctx)
	if err != nil {
		return err
	}

	if pl.EndList || pl.Type == m3u8.PlaylistTypeVOD {
		r.setState(stateVOD)
		if err := r.emitFrom(ctx, pl, r.vodStart(pl), emit); err != nil {
			return err
		}
		r.setState(stateDraining)
		return nil
	}

	r.setState(stateLive)
	if _, err := r.emitNew(ctx, pl, emit); err != nil {
		return err
	}
	r.interval = r.baseInterval(pl)

	for {
		if err := sleep(ctx, r.interval); err != nil {
			return err
		}

		next, changed, err := r.refresh(ctx)
		if err != nil {
			if isFatalPlaylistError(err) {
				return &EngineError{Op: "reload playlist", URL: r.url, Err: err}
			}
			metrics.IncPlaylistReload("error")
			r.logger.Warn().Err(err).Str(xglog.FieldEvent, "hls.reload_failed").Msg("playlist reload failed")
			if r.stall.RecordFailure(err) {
				return &EngineError{Op: "reload playlist", URL: r.url, Err: ErrStalled}
			}
			r.interval = r.grownInterval(nil)
			continue
		}

		added, err := r.emitNew(ctx, next, emit)
		if err != nil {
			return err
		}

		if added == 0 {
			if changed {
				metrics.IncPlaylistReload("ok")
			} else {
				metrics.IncPlaylistReload("unchanged")
			}
			if next.EndList {
				r.setState(stateDraining)
				return nil
			}
			if r.stall.RecordFailure(ErrStalled) {
				return &EngineError{Op: "reload playlist", URL: r.url, Err: ErrStalled}
			}
			r.interval = r.grownInterval(next)
		} else {
			metrics.IncPlaylistReload("ok")
			r.stall.RecordSuccess()
			r.interval = r.baseInterval(next)
		}

		if next.EndList {
			r.setState(stateDraining)
			return nil
		}
	}
}

// resolveMedia loads the playlist, following master playlists to the
// selected variant.
func (r *reloader) resolveMedia(ctx context.Context) (*m3u8.Playlist, error) {
	for depth := 0; ; depth++ {
		pl, body, err := r.load(ctx, true)
		if err != nil {
			return nil, &EngineError{Op: "load playlist", URL: r.url, Err: err}
		}
		if !pl.IsMaster {
			r.lastBody = body
			r.retry.setTargetDuration(pl.TargetDuration)
			if err := pl.Validate(); err != nil {
				r.logger.Warn().Err(err).Msg("playlist violates RFC 8216 constraints")
			}
			if tl, err := ExtractTimeline(pl); err != nil {
				r.logger.Warn().Err(err).Msg("inconsistent playlist timeline")
			} else {
				r.logger.Debug().
					Int("segments", len(pl.Segments)).
					Dur("total_duration", tl.TotalDuration).
					Bool("has_pdt", tl.HasPDT).
					Msg("media playlist loaded")
			}
			return pl, nil
		}
		if depth >= maxVariantDepth {
			return nil, &EngineError{Op: "select variant", URL: r.url, Err: fmt.Errorf("master playlists nested deeper than %d", maxVariantDepth)}
		}
		v, err := r.cfg.Variant(pl.Variants)
		if err != nil {
			return nil, &EngineError{Op: "select variant", URL: r.url, Err: err}
		}
		r.logger.Info().
			Str(xglog.FieldVariant, QualityName(v)).
			Int64("bandwidth", v.Bandwidth).
			Str(xglog.FieldURL, xglog.RedactURL(v.URI)).
			Msg("selected variant")
		r.url = v.URI
		r.setState(stateStarting)
	}
}

// load fetches and parses the current URL. The first load retries with
// backoff; reloads make a single attempt and rely on the next cycle.
func (r *reloader) load(ctx context.Context, retry bool) (*m3u8.Playlist, []byte, error) {
	fetch := func(ctx context.Context) (*response, error) {
		return get(ctx, r.client, r.url, nil)
	}
	var (
		resp *response
		err  error
	)
	if retry {
		resp, err = r.retry.do(ctx, "playlist", r.url, fetch)
	} else {
		resp, err = fetch(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	pl, err := m3u8.Parse(bytes.NewReader(resp.body), m3u8.WithBaseURI(resp.finalURL), m3u8.WithLogger(r.logger))
	if err != nil {
		return nil, nil, err
	}
	return pl, resp.body, nil
}

// refresh reloads a live playlist. changed is false for a byte-identical body.
func (r *reloader) refresh(ctx context.Context) (*m3u8.Playlist, bool, error) {
	pl, body, err := r.load(ctx, false)
	if err != nil {
		return nil, false, err
	}
	if pl.IsMaster {
		return nil, false, fmt.Errorf("media playlist turned into a master playlist")
	}
	changed := !bytes.Equal(body, r.lastBody)
	r.lastBody = body
	r.retry.setTargetDuration(pl.TargetDuration)
	return pl, changed, nil
}

// emitNew emits segments newer than the last emitted one, skipping ahead
// when the window moved past it. Until something was emitted, the first
// non-empty window starts LiveEdge segments from its end.
func (r *reloader) emitNew(ctx context.Context, pl *m3u8.Playlist, emit emitFunc) (int, error) {
	if len(pl.Segments) == 0 {
		return 0, nil
	}
	if !r.started {
		start := max(len(pl.Segments)-r.cfg.LiveEdge, 0)
		if err := r.emitFrom(ctx, pl, start, emit); err != nil {
			return 0, err
		}
		return len(pl.Segments) - start, nil
	}
	if gap := pl.MediaSequence - (r.lastSeq + 1); gap > 0 {
		metrics.AddFallBehind(gap)
		r.logger.Warn().
			Str(xglog.FieldEvent, "hls.fall_behind").
			Int64(xglog.FieldSkipped, gap).
			Int64("last_sequence", r.lastSeq).
			Int64("media_sequence", pl.MediaSequence).
			Msg("fell behind the live window, skipping segments")
	}
	start := 0
	for start < len(pl.Segments) && pl.Segments[start].Sequence <= r.lastSeq {
		start++
	}
	before := r.lastSeq
	if err := r.emitFrom(ctx, pl, start, emit); err != nil {
		return 0, err
	}
	return int(r.lastSeq - before), nil
}

// emitFrom emits pl.Segments[start:], skipping gap segments.
func (r *reloader) emitFrom(ctx context.Context, pl *m3u8.Playlist, start int, emit emitFunc) error {
	for _, seg := range pl.Segments[start:] {
		if r.started && seg.Sequence <= r.lastSeq {
			continue
		}
		r.lastSeq = seg.Sequence
		r.started = true
		if seg.Gap {
			r.logger.Debug().Int64(xglog.FieldSequence, seg.Sequence).Msg("skipping gap segment")
			continue
		}
		if err := emit(ctx, seg); err != nil {
			return err
		}
	}
	return nil
}

// vodStart returns the first segment index honoring EXT-X-START.
func (r *reloader) vodStart(pl *m3u8.Playlist) int {
	if !r.cfg.HonorStartOffset || pl.Start == nil || len(pl.Segments) == 0 {
		return 0
	}
	offset := pl.Start.TimeOffset
	if offset < 0 {
		total := 0.0
		for _, s := range pl.Segments {
			total += s.Duration
		}
		offset += total
		if offset < 0 {
			offset = 0
		}
	}
	elapsed := 0.0
	for i, s := range pl.Segments {
		if elapsed+s.Duration > offset {
			return i
		}
		elapsed += s.Duration
	}
	return len(pl.Segments) - 1
}

// baseInterval is the wait after a reload that produced new segments.
func (r *reloader) baseInterval(pl *m3u8.Playlist) time.Duration {
	if r.cfg.ReloadInterval > 0 {
		return r.cfg.ReloadInterval
	}
	td := targetDuration(pl)
	return td / 2
}

// grownInterval is the wait after an unchanged or failed reload:
// max(target/2, last*1.5), capped at three target durations.
func (r *reloader) grownInterval(pl *m3u8.Playlist) time.Duration {
	if r.cfg.ReloadInterval > 0 {
		return r.cfg.ReloadInterval
	}
	td := targetDuration(pl)
	next := time.Duration(float64(r.interval) * unchangedBackoff)
	if half := td / 2; next < half {
		next = half
	}
	if limit := td * maxReloadFactor; next > limit {
		next = limit
	}
	return next
}

func targetDuration(pl *m3u8.Playlist) time.Duration {
	if pl == nil || pl.TargetDuration <= 0 {
		return 6 * time.Second
	}
	return time.Duration(pl.TargetDuration * float64(time.Second))
}

func isFatalPlaylistError(err error) bool {
	if errors.Is(err, m3u8.ErrMissingHeader) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && !httpErr.Retryable()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/metrics"
	"github.com/ManuGH/streamgrab/internal/output"
	"github.com/ManuGH/streamgrab/internal/resilience"
)

// segmentWriter emits completed segments to the sink in strict order.
type segmentWriter struct {
	w       io.Writer
	crypto  *resilience.CircuitBreaker
	logger  zerolog.Logger
	lastMap string
	written int64
}

func newSegmentWriter(w io.Writer, cryptoThreshold int, logger zerolog.Logger) *segmentWriter {
	return &segmentWriter{
		w:      w,
		crypto: resilience.NewCircuitBreaker("hls_decrypt", cryptoThreshold),
		logger: logger,
	}
}

// run consumes q until it is drained, the context ends or a fatal error
// occurs. On cancellation the already contiguous prefix is still written.
func (sw *segmentWriter) run(ctx context.Context, q *orderedQueue) error {
	for {
		r, err := q.next(ctx)
		switch {
		case errors.Is(err, errDrained):
			return q.Cause()
		case err != nil:
			for {
				r, ok := q.tryNext()
				if !ok {
					break
				}
				if werr := sw.emit(r); werr != nil {
					return werr
				}
			}
			return err
		}
		if err := sw.emit(r); err != nil {
			return err
		}
	}
}

func (sw *segmentWriter) emit(r result) error {
	if r.err != nil {
		return sw.skip(r)
	}
	sw.crypto.RecordSuccess()

	f := r.fetched
	if f.MapID != "" && f.MapID != sw.lastMap {
		if err := sw.write(f.Map); err != nil {
			return err
		}
		sw.lastMap = f.MapID
	}
	if err := sw.write(f.Data); err != nil {
		return err
	}
	sw.logger.Debug().
		Int64(xglog.FieldSequence, r.sequence).
		Int("bytes", len(f.Data)).
		Msg("segment written")
	return nil
}

func (sw *segmentWriter) skip(r result) error {
	sw.logger.Warn().
		Err(r.err).
		Str(xglog.FieldEvent, "hls.segment_skipped").
		Int64(xglog.FieldSequence, r.sequence).
		Msg("segment skipped")

	if !errors.Is(r.err, ErrCrypto) && !errors.Is(r.err, ErrUnsupportedEncryption) {
		return nil
	}
	if sw.crypto.RecordFailure(r.err) {
		return &EngineError{Op: "decrypt", Err: fmt.Errorf("%d consecutive segments failed: %w", sw.crypto.Failures(), r.err)}
	}
	return nil
}

func (sw *segmentWriter) write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := sw.w.Write(b)
	sw.written += int64(n)
	metrics.AddBytesWritten(n)
	if err != nil {
		return fmt.Errorf("%w: %w", output.ErrSinkClosed, err)
	}
	return nil
}

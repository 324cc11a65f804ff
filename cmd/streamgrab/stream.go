// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamgrab/internal/config"
	"github.com/ManuGH/streamgrab/internal/hls"
	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/output"
	"github.com/ManuGH/streamgrab/internal/passthrough"
	"github.com/ManuGH/streamgrab/internal/player"
	"github.com/ManuGH/streamgrab/internal/plugin"
	"github.com/ManuGH/streamgrab/internal/session"
	"github.com/ManuGH/streamgrab/internal/telemetry"
	"github.com/ManuGH/streamgrab/internal/version"
)

const (
	prebufferSize  = 8 * 1024
	copyBufferSize = 32 * 1024
)

var errNoData = errors.New("stream ended before any data was received")

// streamRequest is one invocation of the root command.
type streamRequest struct {
	URL     string
	Quality string
	// PlayAfter runs the player on the finished output file.
	PlayAfter bool
}

// runStream resolves req.URL, opens the selected quality and copies it into
// the configured sink until the stream ends, the sink goes away or ctx is
// cancelled.
func runStream(ctx context.Context, cfg config.AppConfig, req streamRequest, stdout io.Writer) error {
	sessionID := uuid.NewString()
	ctx = xglog.ContextWithSessionID(ctx, sessionID)
	logger := xglog.WithComponentFromContext(ctx, "cli")

	shutdown, err := startTelemetry(ctx, cfg.Telemetry, sessionID)
	if err != nil {
		return err
	}
	defer shutdown()

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	client, err := session.NewClient(sessionOptions(cfg))
	if err != nil {
		return err
	}

	p, streams, err := plugin.Default(hlsConfig(cfg.HLS)).Streams(ctx, client, req.URL)
	if err != nil {
		return err
	}
	name, stream, err := selectStream(streams, req.Quality)
	if err != nil {
		return err
	}

	ctx = xglog.ContextWithStream(ctx, name)
	logger = xglog.WithContext(ctx, logger)
	logger.Info().
		Str("plugin", p.Name()).
		Str("kind", stream.Kind()).
		Strs("available", hls.SortedNames(streams)).
		Str(xglog.FieldURL, xglog.RedactURL(stream.URL())).
		Msg("opening stream")

	r, err := stream.Open(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer r.Close()

	// The sink, possibly a player, is only started once data is flowing.
	first, err := prebuffer(r)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("prebuffer: %w", err)
	}

	title := cfg.Player.Title
	if title == "" {
		title = req.URL
	}
	sink, err := buildSink(cfg, title, stdout)
	if err != nil {
		return err
	}
	if err := sink.Open(ctx); err != nil {
		_ = sink.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("open output: %w", err)
	}

	start := time.Now()
	n, copyErr := copyStream(sink, first, r)
	_ = r.Close()
	closeErr := sink.Close()

	logger.Info().Int64("bytes", n).Dur("elapsed", time.Since(start)).Msg("stream finished")

	switch {
	case copyErr == nil:
	case errors.Is(copyErr, output.ErrSinkClosed):
		logger.Info().Err(copyErr).Msg("output closed, stopping stream")
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}

	if req.PlayAfter {
		return player.Call(ctx, playerSpec(cfg, title), cfg.Output.Path)
	}
	return nil
}

// selectStream picks the first available quality from a comma-separated
// list. The empty list means best.
func selectStream(streams map[string]session.Stream, quality string) (string, session.Stream, error) {
	if strings.TrimSpace(quality) == "" {
		quality = hls.QualityBest
	}
	for _, q := range strings.Split(quality, ",") {
		q = strings.ToLower(strings.TrimSpace(q))
		if s, ok := streams[q]; ok {
			return q, s, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %q (available: %s)", hls.ErrVariantNotFound, quality, strings.Join(hls.SortedNames(streams), ", "))
}

// prebuffer blocks until the stream produced its first bytes.
func prebuffer(r io.Reader) ([]byte, error) {
	buf := make([]byte, prebufferSize)
	n, err := io.ReadAtLeast(r, buf, 1)
	if n > 0 {
		return buf[:n], nil
	}
	if errors.Is(err, io.EOF) {
		return nil, errNoData
	}
	return nil, err
}

func copyStream(w io.Writer, first []byte, r io.Reader) (int64, error) {
	n, err := w.Write(first)
	if err != nil {
		return int64(n), err
	}
	m, err := io.CopyBuffer(w, r, make([]byte, copyBufferSize))
	return int64(n) + m, err
}

func buildSink(cfg config.AppConfig, title string, stdout io.Writer) (output.Sink, error) {
	kind, err := output.ParseKind(cfg.Output.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case output.KindPlayer:
		return player.NewOutput(playerSpec(cfg, title)), nil
	case output.KindHTTP:
		return passthrough.NewSink(cfg.Player.HTTPHost, cfg.Player.HTTPPort, nil), nil
	default:
		return output.New(output.Descriptor{
			Kind:      kind,
			Path:      cfg.Output.Path,
			Overwrite: cfg.Output.Overwrite,
			Stdout:    stdout,
		})
	}
}

func playerSpec(cfg config.AppConfig, title string) player.Spec {
	transport, _ := player.ParseTransport(cfg.Player.Transport)
	spec := player.Spec{
		Executable: cfg.Player.Path,
		Args:       cfg.Player.Args,
		Title:      title,
		Env:        cfg.Player.Env,
		Transport:  transport,
		FilePath:   cfg.Output.Path,
		HTTPHost:   cfg.Player.HTTPHost,
		HTTPPort:   cfg.Player.HTTPPort,
		Overwrite:  cfg.Output.Overwrite,
		NoClose:    cfg.Player.NoClose,
	}
	if cfg.Output.Record != "" {
		spec.Record = true
		spec.RecordPath = cfg.Output.Record
	}
	return spec
}

func sessionOptions(cfg config.AppConfig) session.Options {
	return session.Options{
		Headers:        cfg.HTTP.Headers,
		Cookies:        cfg.HTTP.Cookies,
		Query:          cfg.HTTP.Query,
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.HTTP.Timeout,
		RateLimit:      rate.Limit(cfg.HTTP.RateLimit),
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		Tracing:        cfg.Telemetry.Enabled,
	}
}

func hlsConfig(c config.HLSConfig) hls.Config {
	return hls.Config{
		LiveEdge:               c.LiveEdge,
		Workers:                c.Workers,
		Attempts:               c.Attempts,
		RetryBase:              c.RetryBase,
		RetryMax:               c.RetryMax,
		PlaylistReloadAttempts: c.PlaylistReloadAttempts,
		ReloadInterval:         c.ReloadInterval,
		HonorStartOffset:       c.HonorStartOffset,
	}
}

// startTelemetry installs the tracer provider. The returned func flushes it.
func startTelemetry(ctx context.Context, c config.TelemetryConfig, sessionID string) (func(), error) {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    "streamgrab",
		ServiceVersion: version.Version,
		SessionID:      sessionID,
		ExporterType:   c.Exporter,
		Endpoint:       c.Endpoint,
		SamplingRate:   c.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return func() {
		// The run context may already be cancelled; flushing needs its own.
		if err := provider.Shutdown(context.Background()); err != nil {
			logger := xglog.WithComponent("telemetry")
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}, nil
}

// metricsRouter serves the Prometheus registry on GET /metrics.
func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// serveMetrics exposes the Prometheus registry until the returned func is
// called. The listener is bound before returning so a busy port fails the run.
func serveMetrics(addr string, logger zerolog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           metricsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

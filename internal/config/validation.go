// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"time"

	"github.com/ManuGH/streamgrab/internal/validate"
)

var (
	logFormats       = []string{"console", "json"}
	playerTransports = []string{"stdin", "namedpipe", "http", "file"}
	outputKinds      = []string{"player", "stdout", "file", "http"}
	exporters        = []string{"grpc", "http"}
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}
	v.OneOf("log.format", cfg.Log.Format, logFormats)

	// HTTP session
	v.DurationRange("http.timeout", cfg.HTTP.Timeout, time.Second, 10*time.Minute)
	if cfg.HTTP.RateLimit < 0 {
		v.AddError("http.rateLimit", "value cannot be negative", cfg.HTTP.RateLimit)
	}
	if cfg.HTTP.RateLimit > 0 {
		v.Positive("http.rateLimitBurst", cfg.HTTP.RateLimitBurst)
	}
	for name := range cfg.HTTP.Headers {
		v.HeaderName("http.headers", name)
	}

	// HLS engine
	v.Range("hls.liveEdge", cfg.HLS.LiveEdge, 1, 100)
	v.Range("hls.workers", cfg.HLS.Workers, 1, 10)
	v.Range("hls.attempts", cfg.HLS.Attempts, 1, 20)
	v.DurationRange("hls.retryBase", cfg.HLS.RetryBase, time.Millisecond, time.Minute)
	if cfg.HLS.RetryMax != 0 && cfg.HLS.RetryMax < cfg.HLS.RetryBase {
		v.AddError("hls.retryMax", "must be zero or at least hls.retryBase", cfg.HLS.RetryMax)
	}
	v.Range("hls.playlistReloadAttempts", cfg.HLS.PlaylistReloadAttempts, 1, 100)
	if cfg.HLS.ReloadInterval < 0 {
		v.AddError("hls.reloadInterval", "value cannot be negative", cfg.HLS.ReloadInterval)
	}

	// Output and player
	v.OneOf("output.kind", cfg.Output.Kind, outputKinds)
	switch cfg.Output.Kind {
	case "player":
		v.NotEmpty("player.path", cfg.Player.Path)
		v.OneOf("player.transport", cfg.Player.Transport, playerTransports)
		if cfg.Player.Transport == "file" {
			v.NotEmpty("output.path", cfg.Output.Path)
		}
	case "file":
		v.NotEmpty("output.path", cfg.Output.Path)
	}
	v.Port("player.httpPort", cfg.Player.HTTPPort, true)

	if cfg.Metrics.Listen != "" {
		if _, port, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil || port == "" {
			v.AddError("metrics.listen", fmt.Sprintf("must be host:port, got %q", cfg.Metrics.Listen), cfg.Metrics.Listen)
		}
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, exporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Log: LogConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{
			UserAgent:      "streamgrab/1",
			Timeout:        20 * time.Second,
			RateLimitBurst: 10,
		},
		HLS: HLSConfig{
			LiveEdge:               3,
			Workers:                2,
			Attempts:               3,
			RetryBase:              time.Second,
			PlaylistReloadAttempts: 3,
		},
		Player: PlayerConfig{
			Path:      defaultPlayer(),
			Transport: "stdin",
			HTTPHost:  "127.0.0.1",
		},
		Output: OutputConfig{Kind: "player"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

func defaultPlayer() string {
	if runtime.GOOS == "windows" {
		return "vlc.exe"
	}
	return "vlc"
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "streamgrab", "config.yaml")
}

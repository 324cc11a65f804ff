// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the complete configuration.
type AppConfig struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	HLS       HLSConfig       `yaml:"hls"`
	Player    PlayerConfig    `yaml:"player"`
	Output    OutputConfig    `yaml:"output"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// HTTPConfig holds session-wide request parameters.
type HTTPConfig struct {
	Headers   map[string]string `yaml:"headers,omitempty"`
	Cookies   map[string]string `yaml:"cookies,omitempty"`
	Query     map[string]string `yaml:"query,omitempty"`
	UserAgent string            `yaml:"userAgent"`
	Timeout   time.Duration     `yaml:"timeout"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit      float64 `yaml:"rateLimit"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

type HLSConfig struct {
	LiveEdge               int           `yaml:"liveEdge"`
	Workers                int           `yaml:"workers"`
	Attempts               int           `yaml:"attempts"`
	RetryBase              time.Duration `yaml:"retryBase"`
	RetryMax               time.Duration `yaml:"retryMax"`
	PlaylistReloadAttempts int           `yaml:"playlistReloadAttempts"`
	ReloadInterval         time.Duration `yaml:"reloadInterval"`
	HonorStartOffset       bool          `yaml:"honorStartOffset"`
}

type PlayerConfig struct {
	Path      string            `yaml:"path"`
	Args      string            `yaml:"args"`
	Title     string            `yaml:"title"`
	Env       map[string]string `yaml:"env,omitempty"`
	Transport string            `yaml:"transport"` // stdin, namedpipe, http, file
	HTTPHost  string            `yaml:"httpHost"`
	HTTPPort  int               `yaml:"httpPort"`
	NoClose   bool              `yaml:"noClose"`
}

type OutputConfig struct {
	Kind      string `yaml:"kind"` // player, stdout, file, http
	Path      string `yaml:"path"`
	Overwrite bool   `yaml:"overwrite"`
	// Record tees the stream into this file while playing.
	Record string `yaml:"record"`
}

type MetricsConfig struct {
	// Listen serves /metrics on this address when set.
	Listen string `yaml:"listen"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

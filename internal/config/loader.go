// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/streamgrab/internal/log"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	// optional makes a missing config file fall back to defaults.
	optional        bool
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a loader for an explicitly requested file; a missing
// file is an error. An empty path skips the file layer.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// NewOptionalLoader creates a loader that ignores a missing file, used for
// the default per-user location.
func NewOptionalLoader(configPath string) *Loader {
	l := NewLoader(configPath)
	l.optional = true
	return l
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envMap(key string, defaultVal map[string]string) map[string]string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseMap(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	// 1. Defaults
	cfg := Default()

	// 2. File, decoded on top of the defaults
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Environment (highest priority)
	l.mergeEnvConfig(&cfg)
	l.warnUnknownEnv()

	// 4. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the user via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		if l.optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}

	logger := log.WithComponent("config")
	logger.Debug().Str(log.FieldPath, path).Msg("config file loaded")
	return nil
}

// mergeEnvConfig applies STREAMGRAB_* variables over cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvPrefix+"LOG_FORMAT", cfg.Log.Format)

	cfg.HTTP.Headers = l.envMap(EnvPrefix+"HTTP_HEADERS", cfg.HTTP.Headers)
	cfg.HTTP.Cookies = l.envMap(EnvPrefix+"HTTP_COOKIES", cfg.HTTP.Cookies)
	cfg.HTTP.Query = l.envMap(EnvPrefix+"HTTP_QUERY", cfg.HTTP.Query)
	cfg.HTTP.UserAgent = l.envString(EnvPrefix+"HTTP_USER_AGENT", cfg.HTTP.UserAgent)
	cfg.HTTP.Timeout = l.envDuration(EnvPrefix+"HTTP_TIMEOUT", cfg.HTTP.Timeout)
	cfg.HTTP.RateLimit = l.envFloat(EnvPrefix+"HTTP_RATE_LIMIT", cfg.HTTP.RateLimit)
	cfg.HTTP.RateLimitBurst = l.envInt(EnvPrefix+"HTTP_RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst)

	cfg.HLS.LiveEdge = l.envInt(EnvPrefix+"HLS_LIVE_EDGE", cfg.HLS.LiveEdge)
	cfg.HLS.Workers = l.envInt(EnvPrefix+"HLS_WORKERS", cfg.HLS.Workers)
	cfg.HLS.Attempts = l.envInt(EnvPrefix+"HLS_ATTEMPTS", cfg.HLS.Attempts)
	cfg.HLS.RetryBase = l.envDuration(EnvPrefix+"HLS_RETRY_BASE", cfg.HLS.RetryBase)
	cfg.HLS.RetryMax = l.envDuration(EnvPrefix+"HLS_RETRY_MAX", cfg.HLS.RetryMax)
	cfg.HLS.PlaylistReloadAttempts = l.envInt(EnvPrefix+"HLS_PLAYLIST_RELOAD_ATTEMPTS", cfg.HLS.PlaylistReloadAttempts)
	cfg.HLS.ReloadInterval = l.envDuration(EnvPrefix+"HLS_RELOAD_INTERVAL", cfg.HLS.ReloadInterval)
	cfg.HLS.HonorStartOffset = l.envBool(EnvPrefix+"HLS_HONOR_START_OFFSET", cfg.HLS.HonorStartOffset)

	cfg.Player.Path = l.envString(EnvPrefix+"PLAYER", cfg.Player.Path)
	cfg.Player.Args = l.envString(EnvPrefix+"PLAYER_ARGS", cfg.Player.Args)
	cfg.Player.Title = l.envString(EnvPrefix+"PLAYER_TITLE", cfg.Player.Title)
	cfg.Player.Env = l.envMap(EnvPrefix+"PLAYER_ENV", cfg.Player.Env)
	cfg.Player.Transport = l.envString(EnvPrefix+"PLAYER_TRANSPORT", cfg.Player.Transport)
	cfg.Player.HTTPHost = l.envString(EnvPrefix+"PLAYER_HTTP_HOST", cfg.Player.HTTPHost)
	cfg.Player.HTTPPort = l.envInt(EnvPrefix+"PLAYER_HTTP_PORT", cfg.Player.HTTPPort)
	cfg.Player.NoClose = l.envBool(EnvPrefix+"PLAYER_NO_CLOSE", cfg.Player.NoClose)

	cfg.Output.Kind = l.envString(EnvPrefix+"OUTPUT", cfg.Output.Kind)
	cfg.Output.Path = l.envString(EnvPrefix+"OUTPUT_PATH", cfg.Output.Path)
	cfg.Output.Overwrite = l.envBool(EnvPrefix+"OUTPUT_OVERWRITE", cfg.Output.Overwrite)
	cfg.Output.Record = l.envString(EnvPrefix+"RECORD", cfg.Output.Record)

	cfg.Metrics.Listen = l.envString(EnvPrefix+"METRICS_LISTEN", cfg.Metrics.Listen)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// UnknownEnvKeys lists STREAMGRAB_* variables the loader did not read,
// usually typos.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Loader) warnUnknownEnv() {
	if keys := l.UnknownEnvKeys(); len(keys) > 0 {
		logger := log.WithComponent("config")
		logger.Warn().Strs("keys", keys).Msg("ignoring unknown environment variables")
	}
}

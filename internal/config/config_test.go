// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/validate"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults changed (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: debug
http:
  timeout: 30s
  headers:
    Referer: https://example.com/
hls:
  workers: 4
  liveEdge: 5
player:
  path: mpv
  transport: namedpipe
`)
	t.Setenv("STREAMGRAB_HLS_WORKERS", "6")
	t.Setenv("STREAMGRAB_HTTP_HEADERS", "X-Token=abc, Referer=https://override/")
	t.Setenv("STREAMGRAB_PLAYER_NO_CLOSE", "yes")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 6, cfg.HLS.Workers, "env beats file")
	assert.Equal(t, 5, cfg.HLS.LiveEdge, "file beats default")
	assert.Equal(t, 3, cfg.HLS.Attempts, "default kept")
	assert.Equal(t, "mpv", cfg.Player.Path)
	assert.Equal(t, "namedpipe", cfg.Player.Transport)
	assert.True(t, cfg.Player.NoClose)
	assert.Equal(t, map[string]string{"Referer": "https://override/", "X-Token": "abc"}, cfg.HTTP.Headers)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeFile(t, "config.yaml", "hls:\n  wokers: 4\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeFile(t, "config.yaml", "log:\n  level: info\n---\nlog:\n  level: debug\n")
	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := writeFile(t, "config.json", "{}")
	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := NewLoader(missing).Load()
	assert.Error(t, err)

	cfg, err := NewOptionalLoader(missing).Load()
	require.NoError(t, err)
	assert.Equal(t, Default().HLS, cfg.HLS)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("STREAMGRAB_HLS_WORKERS", "50")
	t.Setenv("STREAMGRAB_PLAYER_TRANSPORT", "smoke-signal")

	_, err := NewLoader("").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"hls.workers", "player.transport"}, verr.Fields())
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("STREAMGRAB_HLS_ATTEMPTS", "many")
	t.Setenv("STREAMGRAB_HTTP_TIMEOUT", "soon")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.HLS.Attempts)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
}

func TestUnknownEnvKeys(t *testing.T) {
	t.Setenv("STREAMGRAB_HLS_WROKERS", "4")
	l := NewLoader("")
	_, err := l.Load()
	require.NoError(t, err)
	assert.Contains(t, l.UnknownEnvKeys(), "STREAMGRAB_HLS_WROKERS")
	assert.NotContains(t, l.UnknownEnvKeys(), "STREAMGRAB_HLS_WORKERS")
}

func TestValidate_FileOutputNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Output.Kind = "file"
	require.Error(t, Validate(cfg))

	cfg.Output.Path = "out.ts"
	require.NoError(t, Validate(cfg))
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SamplingRate = 2
	assert.Error(t, Validate(cfg))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	assert.ErrorIs(t, WriteDefault(path, false), ErrConfigExists)
	require.NoError(t, WriteDefault(path, true))

	// The written file must load back to the defaults under strict parsing.
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMap(t *testing.T) {
	t.Setenv("STREAMGRAB_TEST_MAP", "a=1, b = 2 ,broken,=x,c=")
	got := ParseMap("STREAMGRAB_TEST_MAP", map[string]string{"z": "9"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "", "z": "9"}, got)
}

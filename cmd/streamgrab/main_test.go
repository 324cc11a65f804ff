// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/config"
	"github.com/ManuGH/streamgrab/internal/hls"
	"github.com/ManuGH/streamgrab/internal/session"
	"github.com/ManuGH/streamgrab/internal/version"
)

const vodPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:2.0,
s1.ts
#EXTINF:2.0,
s2.ts
#EXTINF:2.0,
s3.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=1280x720
vod.m3u8
`

// newUpstream serves a small VOD playlist, a master pointing at it and an
// empty playlist.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/vod.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, vodPlaylist)
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, masterPlaylist)
	})
	mux.HandleFunc("/empty.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-ENDLIST\n")
	})
	for i, body := range []string{"seg1", "seg2", "seg3"} {
		mux.HandleFunc(fmt.Sprintf("/s%d.ts", i+1), func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// isolate points the default config path at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, exitOK, exitCode(ctx, nil))
	assert.Equal(t, exitError, exitCode(ctx, errors.New("boom")))
	assert.Equal(t, exitCancelled, exitCode(ctx, context.Canceled))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, exitCancelled, exitCode(cancelled, errors.New("read: use of closed pipe")))
}

func TestRun_VODToFile(t *testing.T) {
	isolate(t)
	srv := newUpstream(t)
	out := filepath.Join(t.TempDir(), "out.ts")

	code, _, stderr := runCLI(t, "--output", out, srv.URL+"/vod.m3u8")
	require.Equal(t, exitOK, code, stderr)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "seg1seg2seg3", string(got))

	// Existing files are kept unless --force is given.
	code, _, _ = runCLI(t, "--output", out, srv.URL+"/vod.m3u8")
	assert.Equal(t, exitError, code)
	code, _, stderr = runCLI(t, "--force", "--output", out, srv.URL+"/vod.m3u8")
	assert.Equal(t, exitOK, code, stderr)
}

func TestRun_MasterToStdoutWithQualityFallback(t *testing.T) {
	isolate(t)
	srv := newUpstream(t)

	code, stdout, stderr := runCLI(t, "--stdout", "hls://"+srv.URL+"/master.m3u8", "1080p,720p")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "seg1seg2seg3", stdout)
}

func TestRun_UnknownQuality(t *testing.T) {
	isolate(t)
	srv := newUpstream(t)

	code, stdout, stderr := runCLI(t, "--stdout", srv.URL+"/master.m3u8", "1080p")
	assert.Equal(t, exitError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "720p")
}

func TestRun_NoDataNeverOpensOutput(t *testing.T) {
	isolate(t)
	srv := newUpstream(t)
	out := filepath.Join(t.TempDir(), "out.ts")

	code, _, _ := runCLI(t, "--output", out, srv.URL+"/empty.m3u8")
	assert.Equal(t, exitError, code)
	assert.NoFileExists(t, out)
}

func TestRun_NoPlugin(t *testing.T) {
	isolate(t)
	code, _, stderr := runCLI(t, "--stdout", "https://example.com/watch?v=1")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "no plugin")
}

func TestRun_ArgumentErrors(t *testing.T) {
	isolate(t)
	code, _, _ := runCLI(t)
	assert.Equal(t, exitError, code)

	code, _, stderr := runCLI(t, "--stdout", "--output", "x.ts", "hls://example.com/a.m3u8")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "mutually exclusive")

	// An explicit zero live edge is rejected rather than replaced by the default.
	code, _, stderr = runCLI(t, "--hls-live-edge", "0", "hls://example.com/a.m3u8")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "hls.liveEdge")
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "streamgrab.yaml")

	code, stdout, stderr := runCLI(t, "--config", path, "config", "init")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, path)
	require.FileExists(t, path)

	code, _, _ = runCLI(t, "--config", path, "config", "init")
	assert.Equal(t, exitError, code)
	code, _, _ = runCLI(t, "--config", path, "config", "init", "--force")
	assert.Equal(t, exitOK, code)

	code, stdout, _ = runCLI(t, "--config", path, "config", "validate")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "is valid")

	code, stdout, _ = runCLI(t, "--config", path, "config", "show", "--format", "json")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `"UserAgent": "streamgrab/1"`)

	require.NoError(t, os.WriteFile(path, []byte("hls:\n  workers: 99\n"), 0o600))
	code, _, stderr = runCLI(t, "--config", path, "config", "validate")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "hls.workers")
}

func TestConfigShowMasksCookies(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "streamgrab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  cookies:\n    session: secret-token\n"), 0o600))

	code, stdout, stderr := runCLI(t, "--config", path, "config", "show")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "session:")
	assert.NotContains(t, stdout, "secret-token")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, version.Version)
}

func TestInspect(t *testing.T) {
	isolate(t)
	srv := newUpstream(t)

	code, stdout, stderr := runCLI(t, "inspect", srv.URL+"/vod.m3u8")
	require.Equal(t, exitOK, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "#EXTM3U\n"))
	assert.Contains(t, stdout, "#EXT-X-ENDLIST")
	assert.Contains(t, stdout, "media playlist (vod): 3 segments, 6s total, 0 discontinuities")
	assert.Contains(t, stdout, "program date time: none")

	code, stdout, stderr = runCLI(t, "inspect", "hls://"+srv.URL+"/master.m3u8")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "#EXT-X-STREAM-INF:")
	assert.Contains(t, stdout, "master playlist: 1 variants")
	assert.Contains(t, stdout, "720p")

	code, _, _ = runCLI(t, "inspect", srv.URL+"/missing.m3u8")
	assert.Equal(t, exitError, code)
}

func TestPlaylistURL(t *testing.T) {
	for in, want := range map[string]string{
		"https://example.com/a.m3u8":            "https://example.com/a.m3u8",
		"hls://example.com/a.m3u8":              "https://example.com/a.m3u8",
		"HLSVARIANT://http://example.com/m.m3u8": "http://example.com/m.m3u8",
		"hls:////example.com/a.m3u8":            "https://example.com/a.m3u8",
	} {
		assert.Equal(t, want, playlistURL(in), in)
	}
}

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *cliFlags) {
	t.Helper()
	f := &cliFlags{}
	fs := pflag.NewFlagSet("streamgrab", pflag.ContinueOnError)
	bindPersistentFlags(fs, f)
	bindStreamFlags(fs, f)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func TestApplyFlags(t *testing.T) {
	fs, f := parseFlags(t,
		"--http-header", "Referer=https://example.com/",
		"--http-header", "X-Token=a=b",
		"--http-cookie", "sid=1",
		"--http-timeout", "5s",
		"--stream-segment-threads", "4",
		"--hls-live-edge", "2",
		"--player", "mpv",
		"--player-transport", "namedpipe",
		"--title", "News",
		"-n",
		"--record", "/tmp/rec.ts",
		"-l", "debug",
	)
	cfg := config.Default()
	cfg.HTTP.Headers = map[string]string{"Accept": "*/*"}
	require.NoError(t, applyFlags(fs, f, &cfg))

	assert.Equal(t, map[string]string{
		"Accept":  "*/*",
		"Referer": "https://example.com/",
		"X-Token": "a=b",
	}, cfg.HTTP.Headers)
	assert.Equal(t, map[string]string{"sid": "1"}, cfg.HTTP.Cookies)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 4, cfg.HLS.Workers)
	assert.Equal(t, 2, cfg.HLS.LiveEdge)
	assert.Equal(t, "mpv", cfg.Player.Path)
	assert.Equal(t, "namedpipe", cfg.Player.Transport)
	assert.Equal(t, "News", cfg.Player.Title)
	assert.True(t, cfg.Player.NoClose)
	assert.Equal(t, "/tmp/rec.ts", cfg.Output.Record)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "player", cfg.Output.Kind)

	// Unset flags leave the config alone.
	fs, f = parseFlags(t)
	untouched := config.Default()
	require.NoError(t, applyFlags(fs, f, &untouched))
	assert.Equal(t, config.Default(), untouched)
}

func TestApplyFlags_OutputSelection(t *testing.T) {
	cases := []struct {
		args    []string
		kind    string
		path    string
		wantErr string
	}{
		{args: []string{"-O"}, kind: "stdout"},
		{args: []string{"-o", "out.ts"}, kind: "file", path: "out.ts"},
		{args: []string{"--player-external-http"}, kind: "http"},
		{args: []string{"--player-play-after", "-o", "out.ts"}, kind: "file", path: "out.ts"},
		{args: []string{"-O", "-o", "out.ts"}, wantErr: "mutually exclusive"},
		{args: []string{"--player-external-http", "-O"}, wantErr: "cannot be combined"},
		{args: []string{"--player-play-after"}, wantErr: "requires --output"},
		{args: []string{"--http-header", "novalue"}, wantErr: "KEY=VALUE"},
	}
	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			fs, f := parseFlags(t, tc.args...)
			cfg := config.Default()
			err := applyFlags(fs, f, &cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, cfg.Output.Kind)
			assert.Equal(t, tc.path, cfg.Output.Path)
		})
	}
}

type fakeStream struct{ url string }

func (s fakeStream) Open(context.Context) (io.ReadCloser, error) { return nil, errors.New("unused") }
func (s fakeStream) URL() string                                 { return s.url }
func (s fakeStream) Kind() string                                { return "fake" }

func TestSelectStream(t *testing.T) {
	streams := map[string]session.Stream{
		"480p":  fakeStream{"low"},
		"720p":  fakeStream{"high"},
		"best":  fakeStream{"high"},
		"worst": fakeStream{"low"},
	}

	name, s, err := selectStream(streams, "")
	require.NoError(t, err)
	assert.Equal(t, "best", name)
	assert.Equal(t, "high", s.URL())

	name, _, err = selectStream(streams, " 1080p , 480P")
	require.NoError(t, err)
	assert.Equal(t, "480p", name)

	_, _, err = selectStream(streams, "1080p")
	assert.ErrorIs(t, err, hls.ErrVariantNotFound)
	assert.Contains(t, err.Error(), "480p, 720p, worst, best")
}

func TestPrebuffer(t *testing.T) {
	first, err := prebuffer(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(first))

	_, err = prebuffer(strings.NewReader(""))
	assert.ErrorIs(t, err, errNoData)

	boom := errors.New("boom")
	_, err = prebuffer(&errReader{boom})
	assert.ErrorIs(t, err, boom)
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(metricsRouter())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = srv.Client().Post(srv.URL+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeMetrics_BusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	_, err = serveMetrics(ln.Addr().String(), zerolog.Nop())
	assert.ErrorContains(t, err, "metrics listener")

	stop, err := serveMetrics("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	stop()
}

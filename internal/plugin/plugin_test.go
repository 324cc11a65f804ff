// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package plugin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/hls"
	"github.com/ManuGH/streamgrab/internal/session"
)

func TestResolve(t *testing.T) {
	r := Default(hls.DefaultConfig())

	cases := map[string]string{
		"hls://example.com/live/index.m3u8":       "hls",
		"HLSVARIANT://example.com/master":         "hls",
		"https://cdn.example.com/a/b.M3U8?tok=1":  "hls",
		"httpstream://example.com/video.ts":       "httpstream",
		"httpstream://http://example.com/video.ts": "httpstream",
	}
	for in, want := range cases {
		p, err := r.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, p.Name(), in)
	}

	for _, in := range []string{"https://example.com/watch?v=1", "ftp://example.com/x.m3u8", "not a url"} {
		_, err := r.Resolve(in)
		assert.ErrorIs(t, err, ErrNoPlugin, in)
	}
}

func TestStripScheme(t *testing.T) {
	for in, want := range map[string]string{
		"hls://example.com/x.m3u8":         "https://example.com/x.m3u8",
		"hls://http://example.com/x.m3u8":  "http://example.com/x.m3u8",
		"hls:////example.com/x.m3u8":       "https://example.com/x.m3u8",
		"hls://https://example.com/x.m3u8": "https://example.com/x.m3u8",
	} {
		got, ok := stripScheme(in, "hls://")
		require.True(t, ok)
		assert.Equal(t, want, got, in)
	}
}

func TestHLSPlugin_Streams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/master.m3u8":
			_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=1280x720\nhi.m3u8\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := session.NewClient(session.Options{})
	require.NoError(t, err)

	cfg := hls.DefaultConfig()
	cfg.RetryBase = time.Millisecond
	_, streams, err := Default(cfg).Streams(context.Background(), client, "hls://"+srv.URL+"/master.m3u8")
	require.NoError(t, err)
	require.Contains(t, streams, "720p")
	assert.True(t, strings.HasSuffix(streams["720p"].URL(), "/hi.m3u8"))
}

func TestHTTPStreamPlugin(t *testing.T) {
	client, err := session.NewClient(session.Options{})
	require.NoError(t, err)

	streams, err := HTTPStream{}.Streams(context.Background(), client, "httpstream://example.com/video.ts")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/video.ts", streams["best"].URL())
	assert.Equal(t, "http", streams["live"].Kind())
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/session"
)

var _ session.Stream = (*Stream)(nil)

func TestStream_EngineErrorSurfacesOnRead(t *testing.T) {
	checkLeaks(t)
	u := newUpstream(t)

	s := NewStream(NewEngine(u.client(), testConfig(), zerolog.Nop()), u.url("/missing.m3u8"))
	rc, err := s.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	_, err = io.ReadAll(rc)
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
}

func TestStream_CloseStopsLiveEngine(t *testing.T) {
	checkLeaks(t)
	u := newUpstream(t)
	var reloads atomic.Int32
	u.handle("/live.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		n := int(reloads.Add(1))
		_, _ = w.Write([]byte(mediaPlaylist(n, 3, false)))
	})
	for i := 1; i < 100; i++ {
		u.static(fmt.Sprintf("/seg%d.ts", i), segBody(i))
	}

	s := NewStream(NewEngine(u.client(), testConfig(), zerolog.Nop()), u.url("/live.m3u8"))
	rc, err := s.Open(context.Background())
	require.NoError(t, err)

	buf := make([]byte, len(segBody(1)))
	_, err = io.ReadFull(rc, buf)
	require.NoError(t, err)
	assert.Equal(t, segBody(1), buf)

	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// upstream is a fake HLS origin counting requests per path.
type upstream struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]http.HandlerFunc
	srv    *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{
		hits:   make(map[string]int),
		routes: make(map[string]http.HandlerFunc),
	}
	u.srv = httptest.NewServer(u)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.hits[r.URL.Path]++
	h, ok := u.routes[r.URL.Path]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (u *upstream) handle(path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[path] = h
}

func (u *upstream) static(path string, body []byte) {
	u.handle(path, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
}

func (u *upstream) playlist(path, body string) {
	u.static(path, []byte(body))
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) url(path string) string {
	return u.srv.URL + path
}

func (u *upstream) client() *http.Client {
	return u.srv.Client()
}

// testConfig keeps retries and reloads fast.
func testConfig() Config {
	return Config{
		Workers:        2,
		Attempts:       3,
		RetryBase:      5 * time.Millisecond,
		RetryMax:       20 * time.Millisecond,
		ReloadInterval: 10 * time.Millisecond,
	}
}

// checkLeaks must be called before any server is started so it runs after
// their cleanups.
func checkLeaks(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t,
			goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
			goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
			goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		)
	})
}

func encryptCBC(t *testing.T, plain, key, iv []byte) []byte {
	t.Helper()
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, buf)
	return out
}

// lockedBuffer is a concurrency-safe sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

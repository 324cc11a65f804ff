// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package player

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/output"
)

// fakePlayer writes an executable shell script and returns its path.
func fakePlayer(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakeplayer")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func openOutput(t *testing.T, spec Spec) *Output {
	t.Helper()
	o := NewOutput(spec)
	o.startupDelay = 50 * time.Millisecond
	o.grace = 2 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, o.Open(ctx))
	return o
}

func TestOutput_Stdin_WithRecording(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "played.ts")
	rec := filepath.Join(dir, "recorded.ts")

	o := openOutput(t, Spec{
		Executable: fakePlayer(t, `cat > "$OUT"`),
		Env:        map[string]string{"OUT": out},
		Transport:  TransportStdin,
		Record:     true,
		RecordPath: rec,
		NoClose:    true,
	})
	assert.Equal(t, "generic", o.Family().Name())

	for _, chunk := range []string{"seg-1|", "seg-2|", "seg-3"} {
		_, err := o.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, o.Close())

	played, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "seg-1|seg-2|seg-3", string(played))

	recorded, err := os.ReadFile(rec)
	require.NoError(t, err)
	assert.Equal(t, "seg-1|seg-2|seg-3", string(recorded))
}

func TestOutput_NamedPipe(t *testing.T) {
	out := filepath.Join(t.TempDir(), "played.ts")

	o := openOutput(t, Spec{
		Executable: fakePlayer(t, `cat "$1" > "$OUT"`),
		Env:        map[string]string{"OUT": out},
		Transport:  TransportNamedPipe,
		NoClose:    true,
	})
	_, err := o.Write([]byte("through the fifo"))
	require.NoError(t, err)
	require.NoError(t, o.Close())

	played, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "through the fifo", string(played))
}

func TestOutput_HTTP(t *testing.T) {
	urlFile := filepath.Join(t.TempDir(), "url")
	spec := Spec{
		Executable: fakePlayer(t, `printf '%s' "$1" > "$URLFILE.tmp" && mv "$URLFILE.tmp" "$URLFILE"; exec sleep 30`),
		Env:        map[string]string{"URLFILE": urlFile},
		Transport:  TransportHTTP,
	}

	body := make(chan string, 1)
	go func() {
		var url string
		for i := 0; i < 200; i++ {
			if b, err := os.ReadFile(urlFile); err == nil {
				url = string(b)
				break
			}
			time.Sleep(25 * time.Millisecond)
		}
		if url == "" {
			body <- "no url"
			return
		}
		resp, err := http.Get(url)
		if err != nil {
			body <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body <- string(b)
	}()

	o := openOutput(t, spec)
	_, err := o.Write([]byte("over http"))
	require.NoError(t, err)
	require.NoError(t, o.Close())

	select {
	case got := <-body:
		assert.Equal(t, "over http", got)
	case <-time.After(10 * time.Second):
		t.Fatal("client never finished")
	}
	assert.True(t, strings.HasPrefix(mustRead(t, urlFile), "http://127.0.0.1:"))
}

func TestOutput_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "stream.ts")
	seen := filepath.Join(dir, "seen")

	o := openOutput(t, Spec{
		Executable: fakePlayer(t, `printf '%s' "$1" > "$SEEN"; exec sleep 30`),
		Env:        map[string]string{"SEEN": seen},
		Transport:  TransportFile,
		FilePath:   file,
	})
	_, err := o.Write([]byte("to disk"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := os.Stat(seen)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, o.Close())

	assert.Equal(t, "to disk", mustRead(t, file))
	assert.Equal(t, file, mustRead(t, seen))
}

func TestOutput_ExitedPrematurely(t *testing.T) {
	o := NewOutput(Spec{Executable: fakePlayer(t, "exit 3")})
	err := o.Open(context.Background())
	assert.ErrorIs(t, err, ErrPlayerExited)
}

func TestOutput_NotFound(t *testing.T) {
	o := NewOutput(Spec{Executable: "streamgrab-no-such-player"})
	err := o.Open(context.Background())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestOutput_PlayerQuitsMidStream(t *testing.T) {
	o := openOutput(t, Spec{
		Executable: fakePlayer(t, `head -c 4 > /dev/null`),
		Transport:  TransportStdin,
	})
	defer o.Close()

	chunk := []byte(strings.Repeat("x", 4096))
	require.Eventually(t, func() bool {
		_, err := o.Write(chunk)
		return errors.Is(err, output.ErrSinkClosed)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOutput_CloseTerminatesPlayer(t *testing.T) {
	o := openOutput(t, Spec{
		Executable: fakePlayer(t, `exec sleep 30`),
		Transport:  TransportStdin,
	})
	start := time.Now()
	require.NoError(t, o.Close())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, o.hasExited())
}

func TestCall(t *testing.T) {
	seen := filepath.Join(t.TempDir(), "seen")
	spec := Spec{
		Executable: fakePlayer(t, `printf '%s' "$1" > "$SEEN"`),
		Env:        map[string]string{"SEEN": seen},
	}
	require.NoError(t, Call(context.Background(), spec, "/videos/show.ts"))
	assert.Equal(t, "/videos/show.ts", mustRead(t, seen))
}

func TestCall_Cancelled(t *testing.T) {
	spec := Spec{Executable: fakePlayer(t, `exec sleep 30`)}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Call(ctx, spec, "/videos/show.ts")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCall_Failure(t *testing.T) {
	err := Call(context.Background(), Spec{Executable: fakePlayer(t, "exit 2")}, "x")
	assert.Error(t, err)
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

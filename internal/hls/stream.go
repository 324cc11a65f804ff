// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"io"
	"sync"
)

// Stream is an HLS playlist exposed as a session.Stream.
type Stream struct {
	engine *Engine
	url    string
}

// NewStream returns a stream that runs engine against playlistURL on Open.
func NewStream(engine *Engine, playlistURL string) *Stream {
	return &Stream{engine: engine, url: playlistURL}
}

func (s *Stream) URL() string  { return s.url }
func (s *Stream) Kind() string { return "hls" }

// Open starts the engine in the background and returns the read end of its
// output. Engine failures surface as read errors; Close stops the engine and
// waits for it.
func (s *Stream) Open(ctx context.Context) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := s.engine.Run(ctx, s.url, pw)
		_ = pw.CloseWithError(err)
	}()

	return &streamReader{PipeReader: pr, cancel: cancel, done: done}, nil
}

type streamReader struct {
	*io.PipeReader
	cancel context.CancelFunc
	done   <-chan struct{}
	once   sync.Once
}

func (r *streamReader) Close() error {
	r.once.Do(func() {
		r.cancel()
		_ = r.PipeReader.Close()
		<-r.done
	})
	return nil
}

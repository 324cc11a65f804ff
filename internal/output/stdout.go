// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package output

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
)

// StdoutSink writes to the process standard output. Closing it does not
// close the descriptor.
type StdoutSink struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewStdoutSink returns a sink bound to os.Stdout.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{w: os.Stdout}
}

func (s *StdoutSink) Open(context.Context) error { return nil }

func (s *StdoutSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSinkClosed
	}
	n, err := s.w.Write(p)
	if errors.Is(err, syscall.EPIPE) {
		return n, ErrSinkClosed
	}
	return n, err
}

func (s *StdoutSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

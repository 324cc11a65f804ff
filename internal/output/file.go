// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	xglog "github.com/ManuGH/streamgrab/internal/log"
)

const fileBufferSize = 64 << 10

// FileSink writes the stream to a local file, creating or truncating it.
type FileSink struct {
	path      string
	overwrite bool

	mu   sync.Mutex
	f    *os.File
	buf  *bufio.Writer
	done bool
}

// NewFileSink returns a sink for path. Without overwrite an existing file is
// an error.
func NewFileSink(path string, overwrite bool) *FileSink {
	return &FileSink{path: path, overwrite: overwrite}
}

// Path returns the target file.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		return nil
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !s.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, s.path)
		}
		return fmt.Errorf("open output file: %w", err)
	}
	s.f = f
	s.buf = bufio.NewWriterSize(f, fileBufferSize)
	logger := xglog.WithComponent("output")
	logger.Info().Str(xglog.FieldPath, s.path).Msg("writing stream to file")
	return nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil || s.done {
		return 0, ErrSinkClosed
	}
	return s.buf.Write(p)
}

// Close flushes buffered data and closes the file. It is idempotent.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil || s.done {
		return nil
	}
	s.done = true
	flushErr := s.buf.Flush()
	closeErr := s.f.Close()
	return errors.Join(flushErr, closeErr)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package namedpipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// openPollInterval is how often Open retries while no reader is attached.
const openPollInterval = 50 * time.Millisecond

// Pipe is a FIFO in the system temp directory.
type Pipe struct {
	path string

	mu     sync.Mutex
	f      *os.File
	closed bool
}

// New creates the FIFO. The caller must Close it to remove the file.
func New() (*Pipe, error) {
	path := filepath.Join(os.TempDir(), randomName())
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return &Pipe{path: path}, nil
}

// Path is the filesystem path of the FIFO.
func (p *Pipe) Path() string { return p.path }

// Open waits until a reader attaches and opens the write end.
func (p *Pipe) Open(ctx context.Context) error {
	t := time.NewTicker(openPollInterval)
	defer t.Stop()
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrClosed
		}
		// A non-blocking open for writing fails with ENXIO until a reader exists.
		f, err := os.OpenFile(p.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			p.f = f
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		if !errors.Is(err, unix.ENXIO) {
			return fmt.Errorf("open named pipe: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	f := p.f
	p.mu.Unlock()
	if f == nil {
		return 0, ErrClosed
	}
	return f.Write(b)
}

// Close closes the write end and removes the FIFO. It is idempotent.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.f != nil {
		errs = append(errs, p.f.Close())
		p.f = nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package namedpipe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Microsoft/go-winio"
)

const pipeBufferSize = 64 * 1024

// Pipe is a Windows named pipe under \\.\pipe\.
type Pipe struct {
	path string
	ln   net.Listener

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// New creates the pipe server end.
func New() (*Pipe, error) {
	path := `\\.\pipe\` + randomName()
	ln, err := winio.ListenPipe(path, &winio.PipeConfig{OutputBufferSize: pipeBufferSize})
	if err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", path, err)
	}
	return &Pipe{path: path, ln: ln}, nil
}

// Path is the pipe name players open.
func (p *Pipe) Path() string { return p.path }

// Open waits until a client connects.
func (p *Pipe) Open(ctx context.Context) error {
	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, err := p.ln.Accept()
		ch <- accepted{c, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return fmt.Errorf("accept named pipe client: %w", a.err)
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = a.conn.Close()
			return ErrClosed
		}
		p.conn = a.conn
		return nil
	case <-ctx.Done():
		// Closing the listener unblocks Accept.
		_ = p.Close()
		return ctx.Err()
	}
}

func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	if c == nil {
		return 0, ErrClosed
	}
	return c.Write(b)
}

// Close closes the client connection and the listener. It is idempotent.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	if err := p.ln.Close(); err != nil && !errors.Is(err, winio.ErrPipeListenerClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

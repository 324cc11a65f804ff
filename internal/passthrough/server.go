// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package passthrough serves a stream to exactly one HTTP client.
package passthrough

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/output"
)

// DefaultHost is used when Listen is given an empty host.
const DefaultHost = "127.0.0.1"

const shutdownTimeout = 2 * time.Second

var errServerClosed = errors.New("passthrough server closed")

// Server is a single-client, single-request HTTP listener. GET / streams the
// bytes passed to Write; every other request gets 404.
type Server struct {
	ln     net.Listener
	srv    *http.Server
	logger zerolog.Logger

	accepted chan struct{}
	closed   chan struct{}
	closeOne sync.Once
	served   chan struct{}

	mu     sync.Mutex
	bound  bool
	gone   bool
	w      http.ResponseWriter
	rc     *http.ResponseController
}

// Listen binds host:port. Port 0 picks an ephemeral port.
func Listen(host string, port int) (*Server, error) {
	if host == "" {
		host = DefaultHost
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("passthrough listen: %w", err)
	}

	s := &Server{
		ln:       ln,
		logger:   xglog.WithComponent("passthrough"),
		accepted: make(chan struct{}),
		closed:   make(chan struct{}),
		served:   make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.serveStream)
	r.NotFound(http.NotFound)
	r.MethodNotAllowed(http.NotFound)

	s.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("passthrough server stopped")
		}
	}()
	s.logger.Info().Str(xglog.FieldURL, s.URL()).Msg("passthrough listening")
	return s, nil
}

// URL is the address players should open.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String() + "/"
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.bound {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	s.bound = true
	s.w = w
	s.rc = http.NewResponseController(w)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = s.rc.Flush()
	s.mu.Unlock()

	defer close(s.served)
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	close(s.accepted)

	select {
	case <-r.Context().Done():
		s.logger.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
	case <-s.closed:
	}

	// Write must not touch w after the handler returns.
	s.mu.Lock()
	s.gone = true
	s.w = nil
	s.rc = nil
	s.mu.Unlock()
}

// Accept blocks until a client requested GET /.
func (s *Server) Accept(ctx context.Context) error {
	select {
	case <-s.accepted:
		return nil
	case <-s.closed:
		return errServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write streams p to the connected client and flushes.
func (s *Server) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return 0, output.ErrSinkClosed
	}
	if s.w == nil {
		return 0, errors.New("passthrough: no client connected")
	}
	n, err := s.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", output.ErrSinkClosed, err)
	}
	if err := s.rc.Flush(); err != nil {
		return n, fmt.Errorf("%w: %w", output.ErrSinkClosed, err)
	}
	return n, nil
}

// Close ends the response and shuts the listener down. It is idempotent.
func (s *Server) Close() error {
	var err error
	s.closeOne.Do(func() {
		close(s.closed)

		s.mu.Lock()
		bound := s.bound
		s.mu.Unlock()
		if bound {
			<-s.served
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = s.srv.Shutdown(ctx); err != nil {
			err = errors.Join(err, s.srv.Close())
		}
	})
	return err
}

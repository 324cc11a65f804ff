// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package passthrough

import (
	"context"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/output"
)

// Sink exposes a Server as an output.Sink for external players. Open binds
// the listener, reports its URL and waits for the client.
type Sink struct {
	host     string
	port     int
	onListen func(url string)
	srv      *Server
}

var _ output.Sink = (*Sink)(nil)

// NewSink returns an unopened sink. onListen, if set, receives the URL a
// player should open once the listener is bound.
func NewSink(host string, port int, onListen func(url string)) *Sink {
	return &Sink{host: host, port: port, onListen: onListen}
}

func (s *Sink) Open(ctx context.Context) error {
	srv, err := Listen(s.host, s.port)
	if err != nil {
		return err
	}
	s.srv = srv
	srv.logger.Info().Str(xglog.FieldURL, srv.URL()).Msg("waiting for a player to connect")
	if s.onListen != nil {
		s.onListen(srv.URL())
	}
	if err := srv.Accept(ctx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.srv == nil {
		return 0, output.ErrSinkClosed
	}
	return s.srv.Write(p)
}

func (s *Sink) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

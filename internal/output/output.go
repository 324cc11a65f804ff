// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package output provides the destinations a stream can be written to.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrSinkClosed reports that the consumer went away: a broken pipe, a
	// disconnected client or an exited player.
	ErrSinkClosed = errors.New("output closed")
	// ErrFileExists is returned by FileSink when the target exists and
	// overwriting was not allowed.
	ErrFileExists = errors.New("output file already exists")
)

// Sink is a stream destination. Open must succeed before the first Write.
type Sink interface {
	Open(ctx context.Context) error
	io.WriteCloser
}

// Kind names a sink type.
type Kind string

const (
	KindStdout Kind = "stdout"
	KindFile   Kind = "file"
	KindPlayer Kind = "player"
	KindHTTP   Kind = "http"
)

// ParseKind validates a sink kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindStdout, KindFile, KindPlayer, KindHTTP:
		return k, nil
	case "":
		return KindPlayer, nil
	default:
		return "", fmt.Errorf("unknown output kind %q", s)
	}
}

// Descriptor selects and parameterizes a sink. Player sinks are assembled by
// the caller from a player Spec.
type Descriptor struct {
	Kind      Kind
	Path      string
	Overwrite bool
	HTTPHost  string
	HTTPPort  int
	// Stdout replaces os.Stdout for KindStdout.
	Stdout io.Writer
}

// New builds the sink for kinds that need no player.
func New(d Descriptor) (Sink, error) {
	switch d.Kind {
	case KindStdout:
		if d.Stdout != nil {
			return &StdoutSink{w: d.Stdout}, nil
		}
		return NewStdoutSink(), nil
	case KindFile:
		if d.Path == "" {
			return nil, fmt.Errorf("file output requires a path")
		}
		return NewFileSink(d.Path, d.Overwrite), nil
	default:
		return nil, fmt.Errorf("output kind %q cannot be built without a player", d.Kind)
	}
}

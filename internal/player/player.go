// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player runs an external media player and feeds it the stream over
// stdin, a named pipe, a local HTTP listener or a file.
package player

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	// ErrPlayerNotFound is returned when the executable is not on PATH.
	ErrPlayerNotFound = errors.New("player executable not found")
	// ErrPlayerExited is returned when the player quits during startup.
	ErrPlayerExited = errors.New("player process exited prematurely")
)

// Transport is how bytes reach the player.
type Transport string

const (
	TransportStdin     Transport = "stdin"
	TransportNamedPipe Transport = "namedpipe"
	TransportHTTP      Transport = "http"
	TransportFile      Transport = "file"
)

// ParseTransport validates a transport name. Empty selects stdin.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(s)); t {
	case TransportStdin, TransportNamedPipe, TransportHTTP, TransportFile:
		return t, nil
	case "":
		return TransportStdin, nil
	default:
		return "", fmt.Errorf("unknown player transport %q", s)
	}
}

// Spec describes the player to run.
type Spec struct {
	Executable string
	// Args is the user argument template, see BuildArgs.
	Args  string
	Title string
	Env   map[string]string

	Transport Transport
	// FilePath is the file written and handed to the player for
	// TransportFile.
	FilePath string
	// HTTPHost and HTTPPort bind the passthrough listener for TransportHTTP.
	HTTPHost string
	HTTPPort int

	// Record tees the stream into RecordPath while playing.
	Record     bool
	RecordPath string
	Overwrite  bool

	// NoClose leaves the player running after the stream ends and waits for
	// it to exit on its own.
	NoClose bool
}

// Validate checks that the transport has what it needs.
func (s Spec) Validate() error {
	if s.Executable == "" {
		return errors.New("player executable is empty")
	}
	if _, err := ParseTransport(string(s.Transport)); err != nil {
		return err
	}
	if s.Transport == TransportFile && s.FilePath == "" {
		return errors.New("file transport requires a file path")
	}
	if s.Record && s.RecordPath == "" {
		return errors.New("recording requires a record path")
	}
	return nil
}

// mergeEnv overlays extra onto base (KEY=VALUE entries). Later keys win and
// the result is deterministic.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func environ(extra map[string]string) []string {
	return mergeEnv(os.Environ(), extra)
}

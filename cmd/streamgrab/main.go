// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamgrab extracts a live or on-demand stream from a URL and hands
// it to a media player, a file, stdout or a local HTTP client.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/version"
)

const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Safe defaults until the config is loaded. Logs never touch stdout,
	// which may carry the stream.
	xglog.Reconfigure(xglog.Config{
		Level:   "info",
		Format:  "console",
		Output:  stderr,
		Service: "streamgrab",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	code := exitCode(ctx, err)
	if code == exitError {
		logger := xglog.WithComponent("cli")
		logger.Error().Err(err).Msg("streamgrab failed")
	}
	return code
}

// exitCode maps the command result to the process exit status.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return exitCancelled
	default:
		return exitError
	}
}

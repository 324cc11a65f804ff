// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"fmt"
	"os/exec"

	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/metrics"
	"github.com/ManuGH/streamgrab/internal/procgroup"
)

// Call runs the player synchronously against an already available input,
// typically a finished file or a URL the player fetches itself. Cancelling
// ctx stops the player.
func Call(ctx context.Context, spec Spec, input string) error {
	if spec.Executable == "" {
		return fmt.Errorf("player executable is empty")
	}
	exe, err := exec.LookPath(spec.Executable)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayerNotFound, spec.Executable, err)
	}
	family := Detect(exe)
	argv, err := BuildArgs(exe, spec.Args, spec.Title, input, family)
	if err != nil {
		return err
	}

	logger := xglog.WithComponent("player").With().
		Str(xglog.FieldPlayer, family.Name()).
		Str(xglog.FieldTransport, "call").
		Logger()

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204
	procgroup.Set(cmd)
	cmd.Env = environ(spec.Env)
	if err := cmd.Start(); err != nil {
		metrics.IncPlayerStart(family.Name(), "call", false)
		return fmt.Errorf("start player: %w", err)
	}
	metrics.IncPlayerStart(family.Name(), "call", true)
	logger.Info().Int(xglog.FieldPID, cmd.Process.Pid).Strs("argv", argv).Msg("player started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		if err != nil {
			return fmt.Errorf("player: %w", err)
		}
		return nil
	case <-ctx.Done():
		grace := terminateGrace
		if isWindows {
			grace = 0
		}
		_ = procgroup.Terminate(cmd, waitCh, grace)
		return ctx.Err()
	}
}

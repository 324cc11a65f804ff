// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/streamgrab/internal/metrics"
)

// Terminate attempts to gracefully stop a process group.
// It sends SIGTERM, waits for the process to exit (via the provided wait channel),
// and if it doesn't exit within grace, sends SIGKILL.
// It consumes and returns the error from waitCh.
// It is safe to call on nil commands (returns nil).
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if grace > 0 {
		metrics.IncProcTerminate("SIGTERM", outcome(Kill(cmd, gracefulSignal)))

		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case err := <-waitCh:
			if err == nil {
				metrics.IncProcWait("exit0")
			} else {
				metrics.IncProcWait("exit_nonzero")
			}
			return err
		case <-t.C:
		}
	}

	metrics.IncProcTerminate("SIGKILL", outcome(Kill(cmd, syscall.SIGKILL)))

	// SIGKILL frees a blocked process; the wait result is still authoritative.
	err := <-waitCh
	if err == nil {
		metrics.IncProcWait("forced_exit0")
	} else {
		metrics.IncProcWait("forced_error")
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return "esrch"
	default:
		return "error"
	}
}

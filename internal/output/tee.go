// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package output

import (
	"errors"
	"io"

	xglog "github.com/ManuGH/streamgrab/internal/log"
)

// Tee copies everything written to the primary writer into a recording.
// A failing recording is detached and logged; the primary keeps streaming.
type Tee struct {
	primary io.Writer
	record  io.WriteCloser
	failed  bool
}

// NewTee returns a writer duplicating primary's input into record.
func NewTee(primary io.Writer, record io.WriteCloser) *Tee {
	return &Tee{primary: primary, record: record}
}

func (t *Tee) Write(p []byte) (int, error) {
	n, err := t.primary.Write(p)
	if err != nil {
		return n, err
	}
	if t.record != nil && !t.failed {
		if _, rerr := t.record.Write(p[:n]); rerr != nil {
			t.failed = true
			logger := xglog.WithComponent("output")
			logger.Warn().Err(rerr).Msg("recording failed, continuing without it")
		}
	}
	return n, nil
}

// Close closes the recording. The primary writer is owned by the caller.
func (t *Tee) Close() error {
	if t.record == nil {
		return nil
	}
	err := t.record.Close()
	t.record = nil
	if t.failed {
		return errors.Join(errors.New("recording incomplete"), err)
	}
	return err
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package namedpipe creates a randomly named FIFO a player can read the
// stream from.
package namedpipe

import (
	"errors"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed pipe.
var ErrClosed = errors.New("named pipe closed")

const namePrefix = "streamgrab-"

func randomName() string {
	return namePrefix + uuid.NewString()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldStream    = "stream"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldPlayer    = "player"
	FieldTransport = "transport"

	// HLS fields
	FieldURL      = "url"
	FieldSequence = "sequence"
	FieldAttempt  = "attempt"
	FieldSkipped  = "skipped"
	FieldVariant  = "variant"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)

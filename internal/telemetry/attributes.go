// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HLS attributes
	HLSSequenceKey  = "hls.segment.sequence"
	HLSURLKey       = "hls.segment.url"
	HLSByteRangeKey = "hls.segment.byte_range"
	HLSEncryptedKey = "hls.segment.encrypted"
	HLSBytesKey     = "hls.segment.bytes"
	HLSAttemptsKey  = "hls.segment.attempts"

	// Player attributes
	PlayerFamilyKey    = "player.family"
	PlayerTransportKey = "player.transport"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SegmentAttributes creates segment-related span attributes. The URL is
// expected to be redacted by the caller.
func SegmentAttributes(sequence int64, url string, encrypted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(HLSSequenceKey, sequence),
		attribute.String(HLSURLKey, url),
		attribute.Bool(HLSEncryptedKey, encrypted),
	}
}

// PlayerAttributes creates player-related span attributes.
func PlayerAttributes(family, transport string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlayerFamilyKey, family),
		attribute.String(PlayerTransportKey, transport),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

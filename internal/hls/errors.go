// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	xglog "github.com/ManuGH/streamgrab/internal/log"
)

var (
	// Sentinel errors for errors.Is checks at the engine boundary.
	ErrSegmentSkipped        = errors.New("hls: segment skipped")
	ErrCrypto                = errors.New("hls: decryption failed")
	ErrUnsupportedEncryption = errors.New("hls: unsupported encryption method")
	ErrInvalidKeyLength      = errors.New("hls: key must be 16 bytes")
	ErrCiphertextSize        = errors.New("hls: ciphertext is not a multiple of the block size")
	ErrBadPadding            = errors.New("hls: invalid PKCS#7 padding")
	ErrStalled               = errors.New("hls: playlist stalled")
	ErrNoVariants            = errors.New("hls: master playlist has no usable variants")
	ErrVariantNotFound       = errors.New("hls: requested variant not found")
	ErrShortRange            = errors.New("hls: body ends before the requested byte range")
)

// HTTPError is a non-2xx response from the upstream.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("hls: GET %s: HTTP %d", xglog.RedactURL(e.URL), e.Status)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	switch {
	case e.Status >= 500:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsRetryable classifies errors from a single HTTP attempt. Transport
// failures, 5xx, 408 and 429 are retryable; cancellation and other 4xx are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	if errors.Is(err, ErrCrypto) || errors.Is(err, ErrUnsupportedEncryption) || errors.Is(err, ErrInvalidKeyLength) {
		return false
	}
	// Transport failures (timeouts, connection reset, EOF mid-body).
	return true
}

// EngineError is a fatal engine failure with the operation that raised it.
type EngineError struct {
	Op  string
	URL string
	Err error
}

func (e *EngineError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("hls: %s %s: %v", e.Op, xglog.RedactURL(e.URL), e.Err)
	}
	return fmt.Sprintf("hls: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// SegmentError records why a single segment was dropped.
type SegmentError struct {
	Sequence int64
	Err      error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("hls: segment %d: %v", e.Sequence, e.Err)
}

func (e *SegmentError) Unwrap() []error {
	return []error{ErrSegmentSkipped, e.Err}
}

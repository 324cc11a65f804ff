// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z07",
}

// ParseTime parses an ISO 8601 date-time with the offset variants seen in
// real playlists (Z, +hh, +hhmm, +hh:mm).
func ParseTime(value string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range timeLayouts {
		if t, err = time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t, nil
		}
	}
	return t, err
}

// RoundBandwidth rounds b to two significant digits, halves to even.
// The result never differs from b by more than b/20.
func RoundBandwidth(b int64) int64 {
	if b < 100 {
		return b
	}
	factor := int64(1)
	for b/factor >= 100 {
		factor *= 10
	}
	q, r := b/factor, b%factor
	if 2*r > factor || (2*r == factor && q%2 == 1) {
		q++
	}
	return q * factor
}

// ResolveURI resolves ref against base. Absolute references are returned
// unchanged apart from dot-segment removal, so resolving twice is a no-op.
// Unparseable input is returned as is.
func ResolveURI(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == "" || ref == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// NormalizeLanguage returns the canonical lower-case BCP 47 form of a
// LANGUAGE attribute, or the trimmed lower-case input when it is not a tag.
func NormalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(tag.String())
}

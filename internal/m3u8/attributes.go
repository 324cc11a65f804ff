// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedAttributes = errors.New("malformed attribute list")
	ErrAttributeMissing    = errors.New("attribute missing")
)

// Attribute is a single NAME=VALUE pair of an attribute list.
type Attribute struct {
	Name   string
	Value  string // unquoted
	Quoted bool
}

// AttributeList preserves the order in which attributes appeared.
type AttributeList []Attribute

// ParseAttributes splits an RFC 8216 attribute list. Quoted values may
// contain commas; whitespace around separators is tolerated. Names are
// upper-cased.
func ParseAttributes(s string) (AttributeList, error) {
	var out AttributeList
	i := 0
	n := len(s)
	for {
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= n {
			return out, nil
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: expected NAME= at offset %d", ErrMalformedAttributes, i)
		}
		name := strings.ToUpper(strings.TrimSpace(s[i : i+eq]))
		if name == "" || strings.ContainsAny(name, ",\"") {
			return nil, fmt.Errorf("%w: invalid name %q", ErrMalformedAttributes, name)
		}
		i += eq + 1
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}

		attr := Attribute{Name: name}
		if i < n && s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quoted value for %s", ErrMalformedAttributes, name)
			}
			attr.Value = s[i+1 : i+1+end]
			attr.Quoted = true
			if strings.ContainsAny(attr.Value, "\r\n") {
				return nil, fmt.Errorf("%w: line break in value for %s", ErrMalformedAttributes, name)
			}
			i += end + 2
			for i < n && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			if i < n && s[i] != ',' {
				return nil, fmt.Errorf("%w: trailing data after %s", ErrMalformedAttributes, name)
			}
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = n - i
			}
			attr.Value = strings.TrimSpace(s[i : i+end])
			i += end
		}
		out = append(out, attr)

		if i < n && s[i] == ',' {
			i++
		}
	}
}

// Get returns the first attribute with the given name.
func (l AttributeList) Get(name string) (Attribute, bool) {
	for _, a := range l {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Has reports whether the attribute is present.
func (l AttributeList) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// String returns the unquoted value, or "" when absent.
func (l AttributeList) String(name string) string {
	a, _ := l.Get(name)
	return a.Value
}

// Int parses a decimal-integer attribute.
func (l AttributeList) Int(name string) (int64, error) {
	a, ok := l.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAttributeMissing, name)
	}
	v, err := strconv.ParseInt(a.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Float parses a decimal-floating-point attribute.
func (l AttributeList) Float(name string) (float64, error) {
	a, ok := l.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAttributeMissing, name)
	}
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Bool parses an enumerated YES/NO attribute. Absent means false.
func (l AttributeList) Bool(name string) bool {
	return strings.EqualFold(l.String(name), "YES")
}

// Hex parses a 0x-prefixed hexadecimal-sequence attribute.
func (l AttributeList) Hex(name string) ([]byte, error) {
	a, ok := l.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeMissing, name)
	}
	return parseHexSequence(a.Value)
}

// Resolution parses a WxH decimal-resolution attribute.
func (l AttributeList) Resolution(name string) (*Resolution, error) {
	a, ok := l.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeMissing, name)
	}
	return parseResolution(a.Value)
}

func parseHexSequence(s string) ([]byte, error) {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return nil, fmt.Errorf("hex sequence %q lacks 0x prefix", s)
	}
	digits := s[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	return hex.DecodeString(digits)
}

func parseResolution(s string) (*Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return nil, fmt.Errorf("resolution %q is not WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return nil, fmt.Errorf("resolution width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return nil, fmt.Errorf("resolution height: %w", err)
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("resolution %q is negative", s)
	}
	return &Resolution{Width: width, Height: height}, nil
}

// parseByteRange parses "n[@o]".
func parseByteRange(s string) (*ByteRange, error) {
	s = strings.TrimSpace(s)
	lenStr, offStr, hasOff := strings.Cut(s, "@")
	length, err := strconv.ParseInt(lenStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("byterange length: %w", err)
	}
	if length <= 0 {
		return nil, fmt.Errorf("byterange length %d must be positive", length)
	}
	br := &ByteRange{Length: length}
	if hasOff {
		off, err := strconv.ParseInt(offStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("byterange offset: %w", err)
		}
		if off < 0 {
			return nil, fmt.Errorf("byterange offset %d is negative", off)
		}
		br.Offset = &off
	}
	return br, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package m3u8

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundBandwidth(t *testing.T) {
	cases := []struct {
		in, want int64
	}{
		{0, 0},
		{7, 7},
		{99, 99},
		{150, 150},
		{1234, 1200},
		{1250, 1200},
		{1350, 1400},
		{99500, 100000},
		{1234567, 1200000},
		{640000, 640000},
		{86000, 86000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoundBandwidth(tc.in), "RoundBandwidth(%d)", tc.in)
	}
}

func TestRoundBandwidth_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		b := rng.Int63n(1 << 40)
		got := RoundBandwidth(b)

		diff := got - b
		if diff < 0 {
			diff = -diff
		}
		if b >= 10 {
			require.Less(t, diff, b/10, "b=%d got=%d", b, got)
		} else {
			require.Equal(t, b, got)
		}

		sig := got
		for sig != 0 && sig%10 == 0 {
			sig /= 10
		}
		require.Less(t, sig, int64(100), "b=%d got=%d has more than two significant digits", b, got)
	}
}

func TestResolveURI(t *testing.T) {
	base := "https://example.com/live/stream/index.m3u8?token=abc"
	cases := map[string]string{
		"seg1.ts":                      "https://example.com/live/stream/seg1.ts",
		"../keys/k.bin":                "https://example.com/live/keys/k.bin",
		"/root.ts":                     "https://example.com/root.ts",
		"//cdn.example.net/a.ts":       "https://cdn.example.net/a.ts",
		"https://other.example/x.ts":   "https://other.example/x.ts",
		"chunk.ts?sig=1":               "https://example.com/live/stream/chunk.ts?sig=1",
		"https://other.example/y/../z": "https://other.example/z",
	}
	for ref, want := range cases {
		got := ResolveURI(base, ref)
		assert.Equal(t, want, got, ref)
		assert.Equal(t, got, ResolveURI(base, got), "resolving %q twice must be a no-op", ref)
	}

	assert.Equal(t, "relative.ts", ResolveURI("", "relative.ts"))
	assert.Equal(t, "", ResolveURI(base, ""))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en-us", NormalizeLanguage("en-US"))
	assert.Equal(t, "de", NormalizeLanguage(" DE "))
	assert.Equal(t, "", NormalizeLanguage(""))
	assert.Equal(t, "not a tag!", NormalizeLanguage("Not A Tag!"))
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 2, 4, 5, 0, time.UTC)
	for _, in := range []string{
		"2024-01-02T02:04:05Z",
		"2024-01-02T03:04:05+01:00",
		"2024-01-02T03:04:05+0100",
		"2024-01-02T03:04:05.000+01",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseTime("2024-01-02")
	assert.Error(t, err)
}

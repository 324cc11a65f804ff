// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamgrab/internal/m3u8"
)

func TestSegmentIV(t *testing.T) {
	explicit := bytes.Repeat([]byte{0x42}, 16)
	key := &m3u8.Key{Method: m3u8.KeyMethodAES128, URI: "k", IV: explicit}
	iv := SegmentIV(key, 7)
	assert.Equal(t, explicit, iv)
	iv[0] = 0
	assert.Equal(t, byte(0x42), key.IV[0], "returned IV is a copy")

	derived := SegmentIV(&m3u8.Key{Method: m3u8.KeyMethodAES128, URI: "k"}, 2)
	want := make([]byte, 16)
	want[15] = 2
	assert.Equal(t, want, derived)

	big := SegmentIV(nil, 0x0102030405060708)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}, big)
}

func TestDecryptAES128CBC_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 16)
	iv := bytes.Repeat([]byte{2}, 16)
	for _, plain := range [][]byte{
		[]byte("a"),
		bytes.Repeat([]byte("x"), 16),
		bytes.Repeat([]byte("y"), 47),
	} {
		got, err := DecryptAES128CBC(encryptCBC(t, plain, key, iv), key, iv)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestDecryptAES128CBC_Errors(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 16)
	iv := bytes.Repeat([]byte{2}, 16)

	_, err := DecryptAES128CBC(make([]byte, 16), key[:8], iv)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = DecryptAES128CBC(make([]byte, 15), key, iv)
	assert.ErrorIs(t, err, ErrCiphertextSize)

	_, err = DecryptAES128CBC(nil, key, iv)
	assert.ErrorIs(t, err, ErrCiphertextSize)

	_, err = DecryptAES128CBC(make([]byte, 16), key, iv[:4])
	assert.Error(t, err)

	// The first block of an all-zero plaintext decrypts to a zero pad byte.
	bad := encryptCBC(t, make([]byte, 16), key, iv)[:16]
	_, err = DecryptAES128CBC(bad, key, iv)
	assert.ErrorIs(t, err, ErrBadPadding)
}

func TestUnpadPKCS7(t *testing.T) {
	got, err := UnpadPKCS7([]byte{'a', 'b', 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)

	for name, in := range map[string][]byte{
		"empty":      {},
		"zero pad":   {'a', 0},
		"too long":   bytes.Repeat([]byte{17}, 17),
		"mismatched": {'a', 2, 3, 3},
		"over input": {2},
	} {
		_, err := UnpadPKCS7(in)
		assert.ErrorIs(t, err, ErrBadPadding, name)
	}
}

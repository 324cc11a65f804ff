// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/ManuGH/streamgrab/internal/m3u8"
)

// SegmentIV returns the explicit IV of key, or the segment sequence number
// as a 16-byte big-endian integer when the playlist omits it.
func SegmentIV(key *m3u8.Key, sequence int64) []byte {
	if key != nil && len(key.IV) == aes.BlockSize {
		iv := make([]byte, aes.BlockSize)
		copy(iv, key.IV)
		return iv
	}
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], uint64(sequence))
	return iv
}

// DecryptAES128CBC decrypts body and strips its PKCS#7 padding.
func DecryptAES128CBC(body, key, iv []byte) ([]byte, error) {
	if len(key) != aesKeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextSize, len(body))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	return UnpadPKCS7(out)
}

// UnpadPKCS7 removes PKCS#7 padding for a 16-byte block size.
func UnpadPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("%w: pad length %d", ErrBadPadding, n)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

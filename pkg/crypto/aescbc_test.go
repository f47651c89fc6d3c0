package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// TestNISTVectorAES128CBC matches NIST SP 800-38A F.2.1: the first 16
// bytes of ciphertext for the given key/iv/plaintext block must equal
// the published value.
func TestNISTVectorAES128CBC(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plaintext := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	wantFirstBlock := mustHex(t, "7649abac8119b246cee98e9b12e9197d")

	c := NewAesCbc()
	ciphertext, err := c.Encrypt(plaintext, key, iv)
	require.NoError(t, err)
	require.Equal(t, wantFirstBlock, ciphertext[:16])
}

func TestAesCbcRoundTrip(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	c := NewAesCbc()

	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte("x"), 15),
		bytes.Repeat([]byte("y"), 16),
		bytes.Repeat([]byte("z"), 33),
	}
	for _, plaintext := range cases {
		ciphertext, err := c.Encrypt(plaintext, key, iv)
		require.NoError(t, err)
		require.Zero(t, len(ciphertext)%16, "ciphertext length %d not block-aligned", len(ciphertext))
		require.Greater(t, len(ciphertext), len(plaintext), "ciphertext must grow by at least one byte of padding")

		got, err := c.Decrypt(ciphertext, key, iv)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestAesCbcRejectsBadKeyOrIVSize(t *testing.T) {
	c := NewAesCbc()
	key16 := make([]byte, 16)
	iv16 := make([]byte, 16)

	_, err := c.Encrypt([]byte("data"), make([]byte, 10), iv16)
	require.Error(t, err, "expected error for short key")

	_, err = c.Encrypt([]byte("data"), key16, make([]byte, 10))
	require.Error(t, err, "expected error for short iv")
}

func TestAesCbcDecryptRejectsMalformedPadding(t *testing.T) {
	c := NewAesCbc()
	key := make([]byte, 16)
	iv := make([]byte, 16)

	block := make([]byte, 16)
	ciphertext, err := c.Encrypt(block, key, iv)
	require.NoError(t, err)

	// Corrupt the last byte of the final plaintext block post-decryption
	// by flipping a ciphertext byte in the last block, which scrambles
	// the recovered padding.
	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = c.Decrypt(ciphertext, key, iv)
	require.Error(t, err, "expected padding error on corrupted ciphertext")
}

// Package crypto implements the segment-level encryption primitives:
// whole-segment AES-128-CBC and SAMPLE-AES partial sample encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

const (
	KeySize = 16
	IVSize  = 16
)

// AesCbc is a pure, immutable AES-128-CBC+PKCS#7 codec: no shared state,
// safe to invoke concurrently from any goroutine.
type AesCbc struct{}

func NewAesCbc() *AesCbc {
	return &AesCbc{}
}

// Encrypt PKCS#7-pads plaintext to a block boundary and encrypts it
// under key/iv. A full 16-byte padding block is appended when
// plaintext is already block-aligned, so the ciphertext always grows
// by at least one byte.
func (AesCbc) Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.InvalidKeySize(len(key))
	}
	if len(iv) != IVSize {
		return nil, errors.InvalidIVSize(len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.CryptoFailed(err.Error())
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt reverses Encrypt, verifying and stripping the PKCS#7 padding.
func (AesCbc) Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.InvalidKeySize(len(key))
	}
	if len(iv) != IVSize {
		return nil, errors.InvalidIVSize(len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.CryptoFailed("ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.CryptoFailed(err.Error())
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.CryptoFailed("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, errors.CryptoFailed("invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.CryptoFailed("invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

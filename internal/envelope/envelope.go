// Package envelope implements the wire codec shared by every backend response:
// a {status, data} wrapper whose data field is a base64 AES-CBC ciphertext.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	deriveIters  = 10_000
	deriveKeyLen = 32
)

var (
	ErrBadPadding = errors.New("envelope: invalid pkcs7 padding")
	ErrBadLength  = errors.New("envelope: ciphertext not a multiple of block size")
)

type Codec struct {
	key []byte
	iv  []byte
}

func NewCodec(key, iv []byte) (*Codec, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("envelope: key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("envelope: iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Codec{key: append([]byte(nil), key...), iv: append([]byte(nil), iv...)}, nil
}

// DeriveCodec builds a codec from a passphrase instead of raw key material.
func DeriveCodec(passphrase, salt string, iv []byte) (*Codec, error) {
	if passphrase == "" {
		return nil, errors.New("envelope: empty passphrase")
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), deriveIters, deriveKeyLen, sha256.New)
	return NewCodec(key, iv)
}

func (c *Codec) Decrypt(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode base64: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, ErrBadLength
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, raw)
	return stripPKCS7(plain)
}

func (c *Codec) Encrypt(plain []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	padded := padPKCS7(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func padPKCS7(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

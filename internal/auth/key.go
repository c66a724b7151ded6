package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for key strings that are not 32 hex characters
var ErrInvalidKey = errors.New("invalid auth key format, expected 32 hex characters")

// KeySize is the AES-128 key length
const KeySize = 16

// Key is the band's shared secret
type Key [KeySize]byte

// ParseKey derives a Key from its 32 hex character form. An optional 0x
// prefix and surrounding whitespace are ignored.
func ParseKey(s string) (Key, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != 2*KeySize {
		return Key{}, fmt.Errorf("%w: got %d characters", ErrInvalidKey, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// String returns the hex form ParseKey accepts
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Response encrypts challenge with AES-CBC under an all-zero IV using PKCS#7
// padding and returns the first 16 ciphertext bytes.
func Response(key Key, challenge []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	pad := aes.BlockSize - len(challenge)%aes.BlockSize
	plain := append(append([]byte(nil), challenge...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plain)
	return out[:aes.BlockSize], nil
}

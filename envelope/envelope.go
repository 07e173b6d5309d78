// Package envelope implements the authenticated encryption wrapper for
// control messages: AES-128-CBC with a random IV, authenticated by
// HMAC-SHA256 over IV|ciphertext (encrypt-then-MAC).
//
// Wire layout, no length prefixes:
//
//	[IV 16][ciphertext N*16, N>=1][tag 32]
//
// Both peers must share the same cipher and integrity keys. The format
// carries no replay protection; duplicates are delivered as-is.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

const (
	BlockSize        = aes.BlockSize // 16
	IVSize           = aes.BlockSize
	TagSize          = sha256.Size // 32
	CipherKeySize    = 16          // AES-128
	IntegrityKeySize = 32

	// MinSize is IV + one ciphertext block + tag.
	MinSize = IVSize + BlockSize + TagSize
)

var (
	ErrMalformed      = errors.New("envelope: malformed length")
	ErrIntegrity      = errors.New("envelope: integrity check failed")
	ErrInvalidPadding = errors.New("envelope: invalid padding")
	ErrRandomSource   = errors.New("envelope: random source failure")
	ErrKeySize        = errors.New("envelope: invalid key size")
)

// Keys holds the two pre-shared secrets. Value is immutable after NewKeys,
// copy freely. Seal/Open are pure and safe for concurrent use.
type Keys struct {
	cipherKey    [CipherKeySize]byte
	integrityKey [IntegrityKeySize]byte
}

func NewKeys(cipherKey, integrityKey []byte) (Keys, error) {
	var k Keys
	if len(cipherKey) != CipherKeySize || len(integrityKey) != IntegrityKeySize {
		return k, ErrKeySize
	}
	copy(k.cipherKey[:], cipherKey)
	copy(k.integrityKey[:], integrityKey)
	return k, nil
}

// Seal wraps plaintext into a transmittable envelope.
// Only possible error is CSPRNG failure; there is no fallback source.
func (k Keys) Seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.cipherKey[:])
	if err != nil {
		// unreachable with NewKeys-validated key size
		return nil, err
	}

	// PKCS#7: pad is always added, full extra block for aligned input
	padLen := BlockSize - len(plaintext)%BlockSize
	ctLen := len(plaintext) + padLen
	buf := make([]byte, IVSize+ctLen, IVSize+ctLen+TagSize)

	iv := buf[:IVSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}

	padded := make([]byte, ctLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < ctLen; i++ {
		padded[i] = byte(padLen)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf[IVSize:], padded)

	mac := hmac.New(sha256.New, k.integrityKey[:])
	mac.Write(buf)
	return mac.Sum(buf), nil
}

// Open verifies and decrypts an envelope. Steps are strictly ordered:
// length check, constant-time tag verify, only then CBC decrypt and
// padding strip. A tampered envelope is never decrypted.
func (k Keys) Open(env []byte) ([]byte, error) {
	if len(env) < MinSize || (len(env)-MinSize)%BlockSize != 0 {
		return nil, ErrMalformed
	}

	signed := env[:len(env)-TagSize]
	tag := env[len(env)-TagSize:]
	mac := hmac.New(sha256.New, k.integrityKey[:])
	mac.Write(signed)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, ErrIntegrity
	}

	block, err := aes.NewCipher(k.cipherKey[:])
	if err != nil {
		return nil, err
	}
	iv := signed[:IVSize]
	padded := make([]byte, len(signed)-IVSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, signed[IVSize:])

	padLen := int(padded[len(padded)-1])
	if padLen == 0 || padLen > BlockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range padded[len(padded)-padLen:] {
		if b != byte(padLen) {
			return nil, ErrInvalidPadding
		}
	}
	return padded[:len(padded)-padLen], nil
}

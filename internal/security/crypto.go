// Package security provides the cryptographic helpers shared by redraftd:
// secure randomness, labeled key derivation, and constant-time comparison.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Cryptographic errors
var (
	ErrInsufficientEntropy = errors.New("security: insufficient entropy")
	ErrWeakKey             = errors.New("security: key is too weak")
	ErrInvalidKeySize      = errors.New("security: invalid key size")
)

// MinKeySize is the minimum allowed key size in bytes.
const MinKeySize = 16 // 128 bits

// RecommendedKeySize is the recommended key size in bytes.
const RecommendedKeySize = 32 // 256 bits

// GenerateSecureRandom fills the given slice with cryptographically secure random bytes.
func GenerateSecureRandom(data []byte) error {
	n, err := rand.Read(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientEntropy, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: only got %d of %d bytes", ErrInsufficientEntropy, n, len(data))
	}
	return nil
}

// GenerateKey generates a cryptographically secure random key.
func GenerateKey(size int) ([]byte, error) {
	if size < MinKeySize {
		return nil, fmt.Errorf("%w: minimum %d bytes required", ErrInvalidKeySize, MinKeySize)
	}

	key := make([]byte, size)
	if err := GenerateSecureRandom(key); err != nil {
		return nil, err
	}

	return key, nil
}

// DeriveKey derives a key using HKDF with SHA-256.
func DeriveKey(masterKey, salt, info []byte, keySize int) ([]byte, error) {
	if len(masterKey) < MinKeySize {
		return nil, fmt.Errorf("%w: master key is %d bytes, minimum %d required",
			ErrWeakKey, len(masterKey), MinKeySize)
	}

	if keySize < MinKeySize {
		return nil, fmt.Errorf("%w: minimum %d bytes required", ErrInvalidKeySize, MinKeySize)
	}

	reader := hkdf.New(sha256.New, masterKey, salt, info)

	derivedKey := make([]byte, keySize)
	if _, err := io.ReadFull(reader, derivedKey); err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	return derivedKey, nil
}

// DeriveKeyWithLabel derives a key with a domain separation label.
// This prevents key reuse across different contexts.
func DeriveKeyWithLabel(masterKey []byte, label string, keySize int) ([]byte, error) {
	info := []byte("redraft:" + label)
	return DeriveKey(masterKey, nil, info, keySize)
}

// SecureCompare performs a constant-time comparison of two byte slices.
// Returns true if they are equal.
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites the slice with zeros. Best effort: the GC may have
// copied the backing array earlier.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

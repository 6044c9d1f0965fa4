package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"redraftd/internal/security"
)

// ErrNoSealer indicates no encryption-at-rest backend is usable.
var ErrNoSealer = errors.New("vault: no sealer available")

// Sealer provides a stable, machine-bound master key for encrypting the
// credential token at rest. Implementations must return the same key across
// process restarts on the same machine.
type Sealer interface {
	// Name identifies the backend ("keychain", "tpm", "software").
	Name() string

	// MasterKey returns the 32-byte master key.
	MasterKey() ([]byte, error)
}

// SelectSealer picks a sealer per the configured preference:
//
//	"platform"  platform backend only (keychain / TPM)
//	"software"  file-based key only
//	"none"      no encryption, tokens stored plaintext with Encrypted=false
//	"auto"      platform if usable, otherwise software
//
// Returns nil (no error) for "none"; ErrNoSealer when the requested backend
// is unusable.
func SelectSealer(preference, keyPath string) (Sealer, error) {
	switch preference {
	case "none":
		return nil, nil
	case "platform":
		s := newPlatformSealer()
		if s == nil {
			return nil, ErrNoSealer
		}
		return s, nil
	case "software":
		return newSoftwareSealer(keyPath), nil
	default: // "auto"
		if s := newPlatformSealer(); s != nil {
			return s, nil
		}
		return newSoftwareSealer(keyPath), nil
	}
}

// softwareSealer stores a random master key in a file readable only by the
// owner. It protects against casual inspection, not a local attacker with
// the user's privileges; callers still mark records Encrypted=true because
// the ciphertext is not self-decrypting.
type softwareSealer struct {
	keyPath string
}

func newSoftwareSealer(keyPath string) *softwareSealer {
	return &softwareSealer{keyPath: keyPath}
}

func (s *softwareSealer) Name() string { return "software" }

func (s *softwareSealer) MasterKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath)
	if err == nil {
		if len(key) != security.RecommendedKeySize {
			return nil, fmt.Errorf("vault: key file %s has %d bytes, want %d",
				s.keyPath, len(key), security.RecommendedKeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vault: read key file: %w", err)
	}

	key, err = security.GenerateKey(security.RecommendedKeySize)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0700); err != nil {
		return nil, fmt.Errorf("vault: create key directory: %w", err)
	}
	if err := os.WriteFile(s.keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("vault: write key file: %w", err)
	}
	return key, nil
}

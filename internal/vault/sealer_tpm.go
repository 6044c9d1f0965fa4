//go:build linux || windows

package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

// ErrTPMNotAvailable indicates no usable TPM 2.0 device on this machine.
var ErrTPMNotAvailable = errors.New("vault: TPM not available")

// tpmChallenge is HMAC'd by a machine-bound TPM key to produce the vault
// master key. Changing it invalidates every stored credential.
var tpmChallenge = []byte("redraft:credential-vault:v1")

// tpmSealer derives the vault master key from a TPM 2.0 keyed-hash primary.
// The primary key template is deterministic, so the same HMAC key material
// exists on every open without persisting anything in TPM NV storage. The
// resulting key never leaves the TPM; only the HMAC output does.
type tpmSealer struct {
	mu  sync.Mutex
	key []byte
}

func newTPMSealer() *tpmSealer {
	if !tpmUsable() {
		return nil
	}
	return &tpmSealer{}
}

func (s *tpmSealer) Name() string { return "tpm" }

func (s *tpmSealer) MasterKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	t, err := openTPMTransport()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTPMNotAvailable, err)
	}
	defer t.Close()

	handle, err := createVaultPrimary(t)
	if err != nil {
		return nil, fmt.Errorf("vault: create TPM primary: %w", err)
	}
	defer func() {
		flush := tpm2.FlushContext{FlushHandle: handle}
		flush.Execute(t)
	}()

	key, err := deriveVaultKey(t, handle)
	if err != nil {
		return nil, fmt.Errorf("vault: derive TPM key: %w", err)
	}

	s.key = key
	return s.key, nil
}

// createVaultPrimary creates the deterministic keyed-hash primary under the
// storage hierarchy. The fixed Unique buffer makes the derivation stable
// across reboots on the same TPM.
func createVaultPrimary(t transport.TPM) (tpm2.TPMHandle, error) {
	cmd := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InSensitive: tpm2.TPM2BSensitiveCreate{
			Sensitive: &tpm2.TPMSSensitiveCreate{
				UserAuth: tpm2.TPM2BAuth{Buffer: nil},
			},
		},
		InPublic: tpm2.New2B(tpm2.TPMTPublic{
			Type:    tpm2.TPMAlgKeyedHash,
			NameAlg: tpm2.TPMAlgSHA256,
			ObjectAttributes: tpm2.TPMAObject{
				FixedTPM:            true,
				FixedParent:         true,
				SensitiveDataOrigin: true,
				UserWithAuth:        true,
				SignEncrypt:         true,
			},
			Parameters: tpm2.NewTPMUPublicParms(
				tpm2.TPMAlgKeyedHash,
				&tpm2.TPMSKeyedHashParms{
					Scheme: tpm2.TPMTKeyedHashScheme{
						Scheme: tpm2.TPMAlgHMAC,
						Details: tpm2.NewTPMUSchemeKeyedHash(
							tpm2.TPMAlgHMAC,
							&tpm2.TPMSSchemeHMAC{HashAlg: tpm2.TPMAlgSHA256},
						),
					},
				},
			),
			Unique: tpm2.NewTPMUPublicID(
				tpm2.TPMAlgKeyedHash,
				&tpm2.TPM2BDigest{Buffer: []byte("redraft-vault-v1")},
			),
		}),
	}

	rsp, err := cmd.Execute(t)
	if err != nil {
		return 0, err
	}
	return rsp.ObjectHandle, nil
}

// deriveVaultKey HMACs the fixed challenge with the primary key. SHA-256
// output is exactly the 32-byte master key the vault needs.
func deriveVaultKey(t transport.TPM, handle tpm2.TPMHandle) ([]byte, error) {
	cmd := tpm2.Hmac{
		Handle: tpm2.AuthHandle{
			Handle: handle,
			Auth:   tpm2.PasswordAuth(nil),
		},
		Buffer:  tpm2.TPM2BMaxBuffer{Buffer: tpmChallenge},
		HashAlg: tpm2.TPMAlgSHA256,
	}

	rsp, err := cmd.Execute(t)
	if err != nil {
		return nil, err
	}
	return rsp.OutHMAC.Buffer, nil
}

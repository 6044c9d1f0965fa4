package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"time"

	"redraftd/internal/logging"
	"redraftd/internal/security"
	"redraftd/internal/store"
)

// ErrNotSignedIn means no usable credential is stored. Expired records and
// records that fail decryption both collapse to this: they are logically
// absent and the user must sign in again.
var ErrNotSignedIn = errors.New("vault: no credential stored")

// tokenKeyLabel domain-separates the AES key from other uses of the master key.
const tokenKeyLabel = "credential-token"

// Vault persists the single credential record, encrypting the token at rest
// when a sealer is available. A nil sealer means plaintext storage with
// Encrypted=false on every record; the caller surfaces that degradation.
type Vault struct {
	store  *store.Store
	sealer Sealer
	log    *logging.Logger
}

// New builds a vault over the given store. sealer may be nil.
func New(st *store.Store, sealer Sealer, log *logging.Logger) *Vault {
	if log == nil {
		log = logging.Default()
	}
	backend := "none"
	if sealer != nil {
		backend = sealer.Name()
	}
	log.Info("vault ready", "sealer", backend)
	return &Vault{store: st, sealer: sealer, log: log}
}

// Encrypted reports whether new records will be protected at rest.
func (v *Vault) Encrypted() bool { return v.sealer != nil }

// SealerName returns the active backend name, or "none".
func (v *Vault) SealerName() string {
	if v.sealer == nil {
		return "none"
	}
	return v.sealer.Name()
}

// Store replaces the stored credential with rec. The whole record is written
// in one statement, so a crash never leaves a half-updated credential.
func (v *Vault) Store(rec *Record) error {
	if rec.UserID == "" || rec.Token == "" {
		return errors.New("vault: record missing user id or token")
	}

	row := &store.CredentialRow{
		UserID:     rec.UserID,
		ExpiresAt:  rec.ExpiresAt,
		UserName:   rec.UserName,
		UserEmail:  rec.UserEmail,
		UserAvatar: rec.UserAvatar,
		StoredAt:   time.Now(),
	}

	if v.sealer != nil {
		cipherText, err := v.sealToken(rec.Token)
		if err != nil {
			return err
		}
		row.TokenCipher = cipherText
		row.Encrypted = true
	} else {
		row.TokenPlain = rec.Token
		row.Encrypted = false
		v.log.Warn("storing credential without encryption at rest")
	}

	if err := v.store.SaveCredential(row); err != nil {
		return err
	}

	v.log.Info("credential stored",
		"user_id", rec.UserID,
		"encrypted", row.Encrypted,
		"has_expiry", rec.ExpiresAt != nil)
	return nil
}

// Load returns the stored credential, decrypted. ErrNotSignedIn when absent.
// An expired record is purged and reported absent; a record that fails to
// decrypt is reported absent without surfacing the corrupted secret.
func (v *Vault) Load() (*Record, error) {
	row, err := v.store.LoadCredential()
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotSignedIn
	}

	if row.ExpiresAt != nil && row.ExpiresAt.Before(time.Now()) {
		v.log.Info("stored credential expired, purging", "expires_at", row.ExpiresAt)
		if err := v.store.DeleteCredential(); err != nil {
			return nil, err
		}
		return nil, ErrNotSignedIn
	}

	rec := &Record{
		UserID:     row.UserID,
		ExpiresAt:  row.ExpiresAt,
		UserName:   row.UserName,
		UserEmail:  row.UserEmail,
		UserAvatar: row.UserAvatar,
		StoredAt:   row.StoredAt,
		Encrypted:  row.Encrypted,
	}

	if !row.Encrypted {
		rec.Token = row.TokenPlain
		return rec, nil
	}

	if v.sealer == nil {
		// Encrypted record but no sealer this run (backend removed or
		// misconfigured). Fail closed.
		v.log.Error("encrypted credential present but no sealer available")
		return nil, ErrNotSignedIn
	}

	token, err := v.openToken(row.TokenCipher)
	if err != nil {
		v.log.Error("credential decryption failed", "error", err)
		return nil, ErrNotSignedIn
	}
	rec.Token = token
	return rec, nil
}

// Clear removes the stored credential. Idempotent.
func (v *Vault) Clear() error {
	if err := v.store.DeleteCredential(); err != nil {
		return err
	}
	v.log.Info("credential cleared")
	return nil
}

// sealToken encrypts the token with AES-256-GCM under a key derived from the
// sealer's master key. Output layout is nonce||ciphertext.
func (v *Vault) sealToken(token string) ([]byte, error) {
	aead, err := v.tokenAEAD()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if err := security.GenerateSecureRandom(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, []byte(token), nil), nil
}

// openToken reverses sealToken.
func (v *Vault) openToken(blob []byte) (string, error) {
	aead, err := v.tokenAEAD()
	if err != nil {
		return "", err
	}

	if len(blob) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(blob))
	}
	nonce, cipherText := blob[:aead.NonceSize()], blob[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (v *Vault) tokenAEAD() (cipher.AEAD, error) {
	master, err := v.sealer.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("vault: master key: %w", err)
	}

	key, err := security.DeriveKeyWithLabel(master, tokenKeyLabel, security.RecommendedKeySize)
	if err != nil {
		return nil, err
	}
	defer security.Zeroize(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

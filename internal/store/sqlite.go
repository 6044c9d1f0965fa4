// Package store provides SQLite-backed local state for redraftd: the single
// credential record and a small key/value settings table (last selected
// tone, one-time permission prompts).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the redraft state database.
//
// credentials holds at most one row (id is fixed to 1): a desktop install
// has a single signed-in user. The token is stored either as ciphertext
// (token_cipher, encrypted=1) or plaintext (token_plain, encrypted=0) so the
// degraded mode is explicit in the data, not inferred.
const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    user_id       TEXT NOT NULL,
    token_cipher  BLOB,
    token_plain   TEXT,
    encrypted     INTEGER NOT NULL,
    expires_at    INTEGER,
    user_name     TEXT NOT NULL,
    user_email    TEXT NOT NULL,
    user_avatar   TEXT,
    stored_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key     TEXT PRIMARY KEY,
    value   TEXT NOT NULL
);
`

// Well-known settings keys.
const (
	SettingTone                  = "tone"
	SettingAccessibilityPrompted = "accessibility_prompted"
)

// CredentialRow is the raw persisted credential record.
type CredentialRow struct {
	UserID      string
	TokenCipher []byte // nonce||ciphertext when Encrypted
	TokenPlain  string // only when not Encrypted
	Encrypted   bool
	ExpiresAt   *time.Time
	UserName    string
	UserEmail   string
	UserAvatar  string
	StoredAt    time.Time
}

// Store is the SQLite state store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The daemon is the only writer; a single connection keeps credential
	// writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCredential replaces the credential record atomically.
func (s *Store) SaveCredential(row *CredentialRow) error {
	var expires *int64
	if row.ExpiresAt != nil {
		v := row.ExpiresAt.Unix()
		expires = &v
	}

	var cipher any
	if len(row.TokenCipher) > 0 {
		cipher = row.TokenCipher
	}

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, user_id, token_cipher, token_plain, encrypted, expires_at, user_name, user_email, user_avatar, stored_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			token_cipher = excluded.token_cipher,
			token_plain = excluded.token_plain,
			encrypted = excluded.encrypted,
			expires_at = excluded.expires_at,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			user_avatar = excluded.user_avatar,
			stored_at = excluded.stored_at`,
		row.UserID, cipher, row.TokenPlain, row.Encrypted, expires,
		row.UserName, row.UserEmail, row.UserAvatar, row.StoredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// LoadCredential returns the stored credential record, or nil if absent.
func (s *Store) LoadCredential() (*CredentialRow, error) {
	row := s.db.QueryRow(`
		SELECT user_id, token_cipher, token_plain, encrypted, expires_at, user_name, user_email, user_avatar, stored_at
		FROM credentials WHERE id = 1`)

	var (
		rec       CredentialRow
		cipher    []byte
		plain     sql.NullString
		avatar    sql.NullString
		expiresAt sql.NullInt64
		storedAt  int64
	)
	err := row.Scan(&rec.UserID, &cipher, &plain, &rec.Encrypted, &expiresAt,
		&rec.UserName, &rec.UserEmail, &avatar, &storedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	rec.TokenCipher = cipher
	rec.TokenPlain = plain.String
	rec.UserAvatar = avatar.String
	rec.StoredAt = time.Unix(storedAt, 0)
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		rec.ExpiresAt = &t
	}

	return &rec, nil
}

// DeleteCredential removes the credential record unconditionally.
func (s *Store) DeleteCredential() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// GetSetting returns the value for key; found is false when unset.
func (s *Store) GetSetting(key string) (value string, found bool, err error) {
	row := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores the value for key.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

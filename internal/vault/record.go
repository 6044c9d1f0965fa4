// Package vault owns the credential record: encryption at rest, expiry, and
// atomic store/load/clear. No other component persists credentials.
package vault

import "time"

// Record is the decrypted credential record for the signed-in user.
type Record struct {
	UserID     string
	Token      string // bearer secret, decrypted
	ExpiresAt  *time.Time
	UserName   string
	UserEmail  string
	UserAvatar string
	StoredAt   time.Time

	// Encrypted reports whether the token was protected at rest. False
	// means the platform had no usable sealer and the token was stored in
	// plaintext - a deliberate, observable degradation.
	Encrypted bool
}

// Expired reports whether the record's expiry, if any, has passed.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

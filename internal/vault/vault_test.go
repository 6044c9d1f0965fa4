package vault

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redraftd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord() *Record {
	expires := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	return &Record{
		UserID:     "u-42",
		Token:      "tok-secret-value",
		ExpiresAt:  &expires,
		UserName:   "Ada Lovelace",
		UserEmail:  "ada@example.com",
		UserAvatar: "https://example.com/ada.png",
	}
}

func TestSoftwareSealerStableKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "master.key")

	s := newSoftwareSealer(keyPath)
	k1, err := s.MasterKey()
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	// A fresh sealer over the same path returns the same key.
	k2, err := newSoftwareSealer(keyPath).MasterKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// A different path yields a different key.
	k3, err := newSoftwareSealer(filepath.Join(t.TempDir(), "other.key")).MasterKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestSelectSealerNone(t *testing.T) {
	s, err := SelectSealer("none", "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestVaultRoundTripEncrypted(t *testing.T) {
	st := openTestStore(t)
	sealer := newSoftwareSealer(filepath.Join(t.TempDir(), "master.key"))
	v := New(st, sealer, nil)

	require.True(t, v.Encrypted())
	require.NoError(t, v.Store(testRecord()))

	// The persisted row must not contain the token in the clear.
	row, err := st.LoadCredential()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Encrypted)
	assert.Empty(t, row.TokenPlain)
	assert.NotContains(t, string(row.TokenCipher), "tok-secret-value")

	got, err := v.Load()
	require.NoError(t, err)
	assert.Equal(t, "u-42", got.UserID)
	assert.Equal(t, "tok-secret-value", got.Token)
	assert.Equal(t, "Ada Lovelace", got.UserName)
	assert.True(t, got.Encrypted)
	require.NotNil(t, got.ExpiresAt)
}

func TestVaultPlaintextDegradation(t *testing.T) {
	st := openTestStore(t)
	v := New(st, nil, nil)

	require.False(t, v.Encrypted())
	assert.Equal(t, "none", v.SealerName())
	require.NoError(t, v.Store(testRecord()))

	got, err := v.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-secret-value", got.Token)
	assert.False(t, got.Encrypted)
}

func TestVaultLoadAbsent(t *testing.T) {
	v := New(openTestStore(t), nil, nil)

	_, err := v.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestVaultClearIdempotent(t *testing.T) {
	v := New(openTestStore(t), nil, nil)

	require.NoError(t, v.Store(testRecord()))
	require.NoError(t, v.Clear())
	require.NoError(t, v.Clear())

	_, err := v.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestVaultDecryptFailsClosed(t *testing.T) {
	st := openTestStore(t)
	dir := t.TempDir()

	writer := New(st, newSoftwareSealer(filepath.Join(dir, "a.key")), nil)
	require.NoError(t, writer.Store(testRecord()))

	// Same store, different master key: the record must read as absent,
	// never as garbage.
	reader := New(st, newSoftwareSealer(filepath.Join(dir, "b.key")), nil)
	_, err := reader.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	// Encrypted record with no sealer at all also fails closed.
	bare := New(st, nil, nil)
	_, err = bare.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestVaultExpiredPurgedOnLoad(t *testing.T) {
	st := openTestStore(t)
	v := New(st, nil, nil)

	rec := testRecord()
	past := time.Now().Add(-time.Minute)
	rec.ExpiresAt = &past
	require.NoError(t, v.Store(rec))

	_, err := v.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	// The purge is durable: the row is gone, and a second load is still
	// absent.
	row, err := st.LoadCredential()
	require.NoError(t, err)
	assert.Nil(t, row)

	_, err = v.Load()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()

	r := &Record{}
	assert.False(t, r.Expired(now), "no expiry never expires")

	past := now.Add(-time.Minute)
	r.ExpiresAt = &past
	assert.True(t, r.Expired(now))

	future := now.Add(time.Minute)
	r.ExpiresAt = &future
	assert.False(t, r.Expired(now))
}

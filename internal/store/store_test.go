package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadCredentialAbsent(t *testing.T) {
	s := openTestStore(t)

	row, err := s.LoadCredential()
	if err != nil {
		t.Fatalf("LoadCredential failed: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row, got %+v", row)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	s := openTestStore(t)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	saved := &CredentialRow{
		UserID:      "u-123",
		TokenCipher: []byte{0x01, 0x02, 0x03},
		Encrypted:   true,
		ExpiresAt:   &expires,
		UserName:    "Ada",
		UserEmail:   "ada@example.com",
		UserAvatar:  "https://example.com/a.png",
		StoredAt:    time.Now().Truncate(time.Second),
	}

	if err := s.SaveCredential(saved); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	got, err := s.LoadCredential()
	if err != nil {
		t.Fatalf("LoadCredential failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if got.UserID != saved.UserID || got.UserName != saved.UserName ||
		got.UserEmail != saved.UserEmail || got.UserAvatar != saved.UserAvatar {
		t.Errorf("profile fields mismatch: %+v", got)
	}
	if !got.Encrypted || string(got.TokenCipher) != string(saved.TokenCipher) {
		t.Errorf("token cipher mismatch: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at mismatch: %v", got.ExpiresAt)
	}
}

func TestCredentialOverwrite(t *testing.T) {
	s := openTestStore(t)

	first := &CredentialRow{UserID: "u-1", TokenPlain: "t1", UserName: "A", UserEmail: "a@x", StoredAt: time.Now()}
	second := &CredentialRow{UserID: "u-2", TokenPlain: "t2", UserName: "B", UserEmail: "b@x", StoredAt: time.Now()}

	if err := s.SaveCredential(first); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCredential(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadCredential()
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u-2" || got.TokenPlain != "t2" {
		t.Errorf("overwrite did not replace row: %+v", got)
	}
}

func TestDeleteCredential(t *testing.T) {
	s := openTestStore(t)

	row := &CredentialRow{UserID: "u-1", TokenPlain: "t", UserName: "A", UserEmail: "a@x", StoredAt: time.Now()}
	if err := s.SaveCredential(row); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCredential(); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}

	got, err := s.LoadCredential()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}

	// Deleting again is a no-op.
	if err := s.DeleteCredential(); err != nil {
		t.Errorf("second delete should not fail: %v", err)
	}
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.GetSetting(SettingTone)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("unset key reported as found")
	}

	if err := s.SetSetting(SettingTone, "casual"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(SettingTone, "professional"); err != nil {
		t.Fatal(err)
	}

	value, found, err := s.GetSetting(SettingTone)
	if err != nil {
		t.Fatal(err)
	}
	if !found || value != "professional" {
		t.Errorf("got %q found=%v", value, found)
	}
}

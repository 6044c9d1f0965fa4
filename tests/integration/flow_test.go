//go:build integration

// Package integration exercises the full rewrite flow end to end: deep-link
// sign-in, credential storage, capture, the remote call, and delivery.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"redraftd/internal/capture"
	"redraftd/internal/deeplink"
	"redraftd/internal/notify"
	"redraftd/internal/orchestrator"
	"redraftd/internal/rewrite"
	"redraftd/internal/store"
	"redraftd/internal/vault"
)

// TestEnv assembles the daemon's components around a fake input driver and a
// local rewrite service.
type TestEnv struct {
	T        *testing.T
	Store    *store.Store
	Vault    *vault.Vault
	Mailbox  *notify.Mailbox
	Driver   *fakeDriver
	Server   *httptest.Server
	Orch     *orchestrator.Orchestrator
	Auth     *deeplink.Handler
	rewrites int
	mu       sync.Mutex
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "redraft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sealer, err := vault.SelectSealer("software", filepath.Join(dir, "vault.key"))
	if err != nil {
		t.Fatalf("select sealer: %v", err)
	}
	v := vault.New(st, sealer, nil)

	env := &TestEnv{
		T:       t,
		Store:   st,
		Vault:   v,
		Mailbox: notify.NewMailbox(nil),
		Driver:  &fakeDriver{clipboard: "stale"},
	}

	env.Server = httptest.NewServer(http.HandlerFunc(env.serveRewrite))
	t.Cleanup(env.Server.Close)

	client := rewrite.NewClient(env.Server.URL, 5*time.Second, nil)
	capturer := capture.New(env.Driver, nil,
		capture.WithPollInterval(time.Millisecond),
		capture.WithSettleDelay(0))
	env.Orch = orchestrator.New(capturer, v, client, st, env.Mailbox, nil)
	env.Auth = deeplink.New(env.Server.URL, v, env.Mailbox, nil)
	return env
}

func (e *TestEnv) serveRewrite(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/rewrite" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "missing credentials", "code": "DESKTOP_AUTH_INVALID",
		})
		return
	}

	e.mu.Lock()
	e.rewrites++
	e.mu.Unlock()

	var req struct {
		Text string `json:"text"`
		Tone string `json:"tone"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	json.NewEncoder(w).Encode(map[string]any{
		"text": "[" + req.Tone + "] " + req.Text,
	})
}

func (e *TestEnv) RewriteCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewrites
}

// SignIn completes the deep-link handshake the way the OS handler would.
func (e *TestEnv) SignIn() {
	e.T.Helper()
	callback := "redraft://auth/success?" + url.Values{
		"userId":    {"u-integration"},
		"token":     {"tok-integration"},
		"userName":  {"Integration User"},
		"userEmail": {"it@example.com"},
	}.Encode()
	if err := e.Auth.HandleCallback(callback); err != nil {
		e.T.Fatalf("deep link rejected: %v", err)
	}
}

// fakeDriver simulates the platform clipboard. A copy chord replaces the
// clipboard with the current "selection".
type fakeDriver struct {
	mu        sync.Mutex
	clipboard string
	selection string
	pastes    int
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) ReadClipboard() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clipboard, nil
}

func (d *fakeDriver) WriteClipboard(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clipboard = text
	return nil
}

func (d *fakeDriver) TriggerCopy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clipboard = d.selection
	return nil
}

func (d *fakeDriver) TriggerPaste() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pastes++
	return nil
}

func (d *fakeDriver) Pastes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pastes
}

func TestFullRewriteFlow(t *testing.T) {
	env := NewTestEnv(t)
	env.SignIn()

	env.Driver.selection = "fix this sentence"
	outcome, ran := env.Orch.Trigger(context.Background())
	if !ran {
		t.Fatal("trigger was dropped")
	}
	if outcome.Kind != rewrite.KindSuccess {
		t.Fatalf("outcome = %v", outcome.Kind)
	}

	clip, _ := env.Driver.ReadClipboard()
	want := "[professional] fix this sentence"
	if clip != want {
		t.Errorf("clipboard = %q, want %q", clip, want)
	}
	if env.Driver.Pastes() != 1 {
		t.Errorf("pastes = %d, want 1", env.Driver.Pastes())
	}
}

func TestFlowWithoutSignIn(t *testing.T) {
	env := NewTestEnv(t)

	env.Driver.selection = "anything"
	outcome, ran := env.Orch.Trigger(context.Background())
	if !ran {
		t.Fatal("trigger was dropped")
	}
	if outcome.Kind != rewrite.KindAuthRequired {
		t.Fatalf("outcome = %v, want auth required", outcome.Kind)
	}
	if env.RewriteCalls() != 0 {
		t.Errorf("rewrite calls = %d, want 0", env.RewriteCalls())
	}
}

func TestCredentialSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "redraft.db")
	keyPath := filepath.Join(dir, "vault.key")

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	sealer, err := vault.SelectSealer("software", keyPath)
	if err != nil {
		t.Fatal(err)
	}
	v := vault.New(st, sealer, nil)
	if err := v.Store(&vault.Record{
		UserID: "u-1", Token: "tok-1",
		UserName: "Ada", UserEmail: "ada@example.com",
	}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	// A daemon restart reopens everything from disk.
	st2, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	sealer2, err := vault.SelectSealer("software", keyPath)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := vault.New(st2, sealer2, nil).Load()
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if rec.Token != "tok-1" || rec.UserID != "u-1" {
		t.Errorf("record = %+v", rec)
	}
}

func TestLogoutEndsAccess(t *testing.T) {
	env := NewTestEnv(t)
	env.SignIn()

	if err := env.Vault.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	env.Driver.selection = "text"
	outcome, _ := env.Orch.Trigger(context.Background())
	if outcome.Kind != rewrite.KindAuthRequired {
		t.Fatalf("outcome after logout = %v", outcome.Kind)
	}
}

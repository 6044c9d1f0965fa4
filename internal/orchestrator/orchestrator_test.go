package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"redraftd/internal/capture"
	"redraftd/internal/notify"
	"redraftd/internal/rewrite"
	"redraftd/internal/store"
	"redraftd/internal/vault"
)

// scriptedDriver pops scripted clipboard reads, then serves its live
// clipboard value. Writes update the live value.
type scriptedDriver struct {
	mu        sync.Mutex
	reads     []string
	clipboard string
	pastes    int
}

func (d *scriptedDriver) Name() string { return "scripted" }

func (d *scriptedDriver) ReadClipboard() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reads) > 0 {
		v := d.reads[0]
		d.reads = d.reads[1:]
		return v, nil
	}
	return d.clipboard, nil
}

func (d *scriptedDriver) WriteClipboard(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clipboard = text
	return nil
}

func (d *scriptedDriver) TriggerCopy() error { return nil }

func (d *scriptedDriver) TriggerPaste() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pastes++
	return nil
}

type fixture struct {
	orch   *Orchestrator
	driver *scriptedDriver
	vault  *vault.Vault
	events <-chan notify.Event
	calls  *atomic.Int32
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	driver := &scriptedDriver{}
	capturer := capture.New(driver, nil,
		capture.WithPollInterval(time.Millisecond),
		capture.WithMaxAttempts(5),
		capture.WithSettleDelay(time.Millisecond))

	v := vault.New(st, nil, nil)
	client := rewrite.NewClient(srv.URL, 5*time.Second, nil)
	mb := notify.NewMailbox(nil)
	events, cancel := mb.Subscribe()
	t.Cleanup(cancel)

	return &fixture{
		orch:   New(capturer, v, client, st, mb, nil),
		driver: driver,
		vault:  v,
		events: events,
		calls:  &calls,
	}
}

func signIn(t *testing.T, v *vault.Vault) {
	t.Helper()
	err := v.Store(&vault.Record{
		UserID: "u-1", Token: "tok", UserName: "Ada", UserEmail: "ada@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInvocationSuccess(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"Hello, world!","metadata":{"usage":{"remainingToday":4,"dailyLimit":5,"percentUsed":20}}}`))
	})
	signIn(t, f.vault)

	// Snapshot "old", clipboard changes on the second poll.
	f.driver.reads = []string{"old", "old", "Hello world"}

	out, ran := f.orch.Trigger(context.Background())
	if !ran {
		t.Fatal("trigger was dropped")
	}
	if out.Kind != rewrite.KindSuccess {
		t.Fatalf("outcome = %v", out)
	}
	if f.driver.clipboard != "Hello, world!" {
		t.Errorf("final clipboard = %q", f.driver.clipboard)
	}
	if f.driver.pastes != 1 {
		t.Errorf("pastes = %d", f.driver.pastes)
	}

	e := <-f.events
	if e.Type != notify.TypeSuccess {
		t.Errorf("event = %+v", e)
	}
}

func TestInvocationAuthRequired(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call should be issued without credentials")
	})

	f.driver.reads = []string{"old", "Hello world"}

	out, ran := f.orch.Trigger(context.Background())
	if !ran {
		t.Fatal("trigger was dropped")
	}
	if out.Kind != rewrite.KindAuthRequired {
		t.Fatalf("outcome = %v", out)
	}
	if got := f.calls.Load(); got != 0 {
		t.Errorf("network calls = %d", got)
	}

	e := <-f.events
	if e.Type != notify.TypeError {
		t.Errorf("event = %+v", e)
	}
}

func TestInvocationRateLimited(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down","code":"RATE_LIMIT_EXCEEDED","details":{"retryAfter":30}}`))
	})
	signIn(t, f.vault)

	f.driver.reads = []string{"old", "Hello world"}
	f.driver.clipboard = "untouched"

	out, ran := f.orch.Trigger(context.Background())
	if !ran {
		t.Fatal("trigger was dropped")
	}
	if out.Kind != rewrite.KindRateLimited || out.RetryAfter != 30 {
		t.Fatalf("outcome = %v", out)
	}
	if f.driver.clipboard != "untouched" {
		t.Errorf("clipboard modified on failure: %q", f.driver.clipboard)
	}
	if f.driver.pastes != 0 {
		t.Errorf("pastes = %d", f.driver.pastes)
	}
}

func TestInvocationNoTextSelected(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected")
	})
	signIn(t, f.vault)

	f.driver.reads = []string{"stale"}
	f.driver.clipboard = "stale"

	out, _ := f.orch.Trigger(context.Background())
	if out.Kind != rewrite.KindNoTextSelected {
		t.Fatalf("outcome = %v", out)
	}
}

func TestAuthExpiredClearsVault(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token","code":"DESKTOP_AUTH_INVALID"}`))
	})
	signIn(t, f.vault)

	f.driver.reads = []string{"old", "Hello world"}

	out, _ := f.orch.Trigger(context.Background())
	if out.Kind != rewrite.KindAuthExpired {
		t.Fatalf("outcome = %v", out)
	}
	if _, err := f.vault.Load(); err == nil {
		t.Error("vault should be cleared after auth expiry")
	}
}

func TestReentrantTriggerDropped(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"text":"done","metadata":{}}`))
	})
	signIn(t, f.vault)

	f.driver.reads = []string{"old", "first"}

	done := make(chan rewrite.Outcome, 1)
	go func() {
		out, _ := f.orch.Trigger(context.Background())
		done <- out
	}()

	// Wait until the first invocation is blocked inside the request stage.
	deadline := time.After(2 * time.Second)
	for f.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first invocation never reached the server")
		case <-time.After(time.Millisecond):
		}
	}

	if _, ran := f.orch.Trigger(context.Background()); ran {
		t.Error("re-entrant trigger should be dropped")
	}

	close(release)
	out := <-done
	if out.Kind != rewrite.KindSuccess {
		t.Fatalf("first invocation outcome = %v", out)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
}

func TestToneDefaultAndSetting(t *testing.T) {
	var gotTone string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tone string `json:"tone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			gotTone = body.Tone
		}
		w.Write([]byte(`{"text":"x","metadata":{}}`))
	})
	signIn(t, f.vault)

	f.driver.reads = []string{"old", "text"}
	f.orch.Trigger(context.Background())
	if gotTone != DefaultTone {
		t.Errorf("tone = %q, want default", gotTone)
	}

	if err := f.orch.settings.SetSetting(store.SettingTone, "casual"); err != nil {
		t.Fatal(err)
	}
	f.driver.reads = []string{"old", "more text"}
	f.orch.Trigger(context.Background())
	if gotTone != "casual" {
		t.Errorf("tone = %q, want casual", gotTone)
	}
}

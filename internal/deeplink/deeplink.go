// Package deeplink runs the browser sign-in handshake. The daemon opens the
// authorization page in the default browser; the site finishes OAuth and
// redirects to a custom-scheme URL the OS routes back to us. The callback
// carries the credential payload as query parameters.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"redraftd/internal/logging"
	"redraftd/internal/notify"
	"redraftd/internal/vault"
)

// Callback shape. Everything else is rejected without touching the vault.
const (
	Scheme       = "redraft"
	callbackHost = "auth"
	callbackPath = "/success"
)

// ErrRejected means the callback URL failed validation. The message is
// deliberately generic; details go to the log only.
var ErrRejected = errors.New("deeplink: callback rejected")

// State of the handshake.
type State int32

const (
	StateIdle State = iota
	StateAwaitingCallback
	StateCompleted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateCompleted:
		return "completed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Handler owns the handshake state machine.
type Handler struct {
	baseURL string
	vault   *vault.Vault
	mailbox *notify.Mailbox
	log     *logging.Logger
	state   atomic.Int32

	// openBrowser is swappable for tests.
	openBrowser func(url string) error
}

// New builds a handler against the service at baseURL.
func New(baseURL string, v *vault.Vault, mb *notify.Mailbox, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Default()
	}
	return &Handler{
		baseURL:     strings.TrimRight(baseURL, "/"),
		vault:       v,
		mailbox:     mb,
		log:         log,
		openBrowser: openBrowser,
	}
}

// State returns the current handshake state.
func (h *Handler) State() State {
	return State(h.state.Load())
}

// Begin opens the authorization page and starts waiting for the callback.
// The device parameter lets the remote side bind the session to this
// installation. There is no timeout on the wait; the worst case is staying
// signed out until the user tries again.
func (h *Handler) Begin() error {
	authURL := fmt.Sprintf("%s/api/auth/desktop/callback?source=desktop&device=%s",
		h.baseURL, url.QueryEscape(deviceTag()))

	if err := h.openBrowser(authURL); err != nil {
		return fmt.Errorf("deeplink: open browser: %w", err)
	}

	h.state.Store(int32(StateAwaitingCallback))
	h.log.Info("sign-in started, waiting for callback")
	h.mailbox.Publish(notify.Event{
		Type:    notify.TypeInfo,
		Title:   "Sign in",
		Message: "Complete the sign-in in your browser.",
	})
	return nil
}

// HandleCallback validates the custom-scheme URL and commits the credential.
// It accepts callbacks in any state: the daemon may have restarted since
// Begin, and a repeat callback after completion is an idempotent overwrite.
func (h *Handler) HandleCallback(rawURL string) error {
	rec, err := parseCallback(rawURL)
	if err != nil {
		h.state.Store(int32(StateRejected))
		h.log.Warn("auth callback rejected", "error", err)
		h.mailbox.Publish(notify.Event{
			Type:    notify.TypeError,
			Title:   "Sign-in failed",
			Message: "The sign-in link was invalid. Please try again.",
		})
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if err := h.vault.Store(rec); err != nil {
		h.state.Store(int32(StateRejected))
		h.log.Error("storing credential failed", "error", err)
		h.mailbox.Publish(notify.Event{
			Type:    notify.TypeError,
			Title:   "Sign-in failed",
			Message: "Could not save your session. Please try again.",
		})
		return err
	}

	h.state.Store(int32(StateCompleted))
	h.log.Info("sign-in completed", "user_id", rec.UserID)
	h.mailbox.Publish(notify.Event{
		Type:    notify.TypeSuccess,
		Title:   "Signed in",
		Message: fmt.Sprintf("Welcome back, %s.", rec.UserName),
	})
	return nil
}

// parseCallback checks the URL shape and required fields, failing closed on
// anything unexpected. Returns the record to store; the token never appears
// in errors or logs.
func parseCallback(rawURL string) (*vault.Record, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("malformed url: %w", err)
	}

	if u.Scheme != Scheme || u.Host != callbackHost || u.Path != callbackPath {
		return nil, fmt.Errorf("unexpected callback shape %s://%s%s", u.Scheme, u.Host, u.Path)
	}

	q := u.Query()
	rec := &vault.Record{
		UserID:     q.Get("userId"),
		Token:      q.Get("token"),
		UserName:   q.Get("userName"),
		UserEmail:  q.Get("userEmail"),
		UserAvatar: q.Get("userAvatar"),
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"userId", rec.UserID},
		{"token", rec.Token},
		{"userName", rec.UserName},
		{"userEmail", rec.UserEmail},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if raw := q.Get("expiresAt"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid expiresAt: %w", err)
		}
		rec.ExpiresAt = &at
	}

	return rec, nil
}

// deviceTag identifies this installation to the auth flow.
func deviceTag() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return hostname + "-" + runtime.GOOS
}

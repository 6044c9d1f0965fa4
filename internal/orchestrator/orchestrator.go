// Package orchestrator sequences one hotkey invocation: capture the
// selection, load credentials, call the rewrite service, paste the result.
// Every failure short-circuits to a reported outcome; nothing is fatal and
// the orchestrator always returns to idle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"redraftd/internal/capture"
	"redraftd/internal/input"
	"redraftd/internal/logging"
	"redraftd/internal/notify"
	"redraftd/internal/rewrite"
	"redraftd/internal/store"
	"redraftd/internal/vault"
)

// DefaultTone is used until the user picks one.
const DefaultTone = "professional"

// Orchestrator owns the invocation state machine. The clipboard and the
// synthetic-input subsystem are process-wide exclusive resources, so at most
// one invocation runs at a time; re-entrant triggers are dropped, never
// queued.
type Orchestrator struct {
	capturer *capture.Capturer
	vault    *vault.Vault
	client   *rewrite.Client
	settings *store.Store
	mailbox  *notify.Mailbox
	log      *logging.Logger

	inFlight atomic.Bool
}

// New wires the orchestrator.
func New(c *capture.Capturer, v *vault.Vault, client *rewrite.Client,
	settings *store.Store, mb *notify.Mailbox, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Default()
	}
	return &Orchestrator{
		capturer: c,
		vault:    v,
		client:   client,
		settings: settings,
		mailbox:  mb,
		log:      log,
	}
}

// Run drains hotkey presses until ctx is canceled. Each press triggers one
// invocation; presses landing while one is in flight are dropped by the
// guard inside Trigger.
func (o *Orchestrator) Run(ctx context.Context, presses <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-presses:
			if !ok {
				return
			}
			go o.Trigger(ctx)
		}
	}
}

// Trigger runs one invocation and returns its classified outcome. The
// second return is false when the trigger was dropped because another
// invocation was in flight; a dropped trigger has no observable effect.
func (o *Orchestrator) Trigger(ctx context.Context) (rewrite.Outcome, bool) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.log.Debug("hotkey press dropped, invocation in flight")
		return rewrite.Outcome{}, false
	}
	defer o.inFlight.Store(false)

	outcome := o.invoke(ctx)
	o.report(outcome)
	return outcome, true
}

// invoke walks the stages in order. Each stage either advances or returns
// the terminal outcome.
func (o *Orchestrator) invoke(ctx context.Context) rewrite.Outcome {
	// Capturing.
	captured, err := o.capturer.Capture(ctx)
	if err != nil {
		return o.captureOutcome(err)
	}

	// Authorizing.
	creds, err := o.vault.Load()
	if err != nil {
		if errors.Is(err, vault.ErrNotSignedIn) {
			return rewrite.Outcome{Kind: rewrite.KindAuthRequired}
		}
		o.log.Error("credential load failed", "error", err)
		return rewrite.Outcome{Kind: rewrite.KindUnknown, Raw: err.Error()}
	}

	// Requesting.
	outcome := o.client.Rewrite(ctx, captured.Text, o.tone(),
		rewrite.Credentials{UserID: creds.UserID, Token: creds.Token})

	if outcome.Kind == rewrite.KindAuthExpired {
		// The stored token is dead; keep the vault consistent with what
		// the service thinks.
		if err := o.vault.Clear(); err != nil {
			o.log.Error("clearing expired credential failed", "error", err)
		}
	}
	if outcome.Kind != rewrite.KindSuccess {
		return outcome
	}

	// Applying.
	if err := o.capturer.Deliver(ctx, outcome.Text); err != nil {
		o.log.Error("delivering rewrite failed", "error", err)
		return rewrite.Outcome{Kind: rewrite.KindUnknown, Raw: err.Error()}
	}
	return outcome
}

func (o *Orchestrator) captureOutcome(err error) rewrite.Outcome {
	switch {
	case errors.Is(err, capture.ErrNoTextSelected):
		return rewrite.Outcome{Kind: rewrite.KindNoTextSelected}
	case errors.Is(err, input.ErrPermissionDenied),
		errors.Is(err, input.ErrPlatformUnsupported):
		return rewrite.Outcome{Kind: rewrite.KindUnknown, Raw: err.Error()}
	default:
		o.log.Error("capture failed", "error", err)
		return rewrite.Outcome{Kind: rewrite.KindUnknown, Raw: err.Error()}
	}
}

// tone returns the last selected tone, falling back to the default.
func (o *Orchestrator) tone() string {
	tone, found, err := o.settings.GetSetting(store.SettingTone)
	if err != nil || !found || tone == "" {
		return DefaultTone
	}
	return tone
}

// report turns the outcome into a user-facing event. Permission and network
// failures get actionable text; nothing is silently swallowed.
func (o *Orchestrator) report(outcome rewrite.Outcome) {
	o.log.Info("invocation finished", "outcome", outcome.Kind.String())

	switch outcome.Kind {
	case rewrite.KindSuccess:
		message := "Your text was rewritten and pasted."
		if outcome.Usage != nil {
			message = fmt.Sprintf("Rewritten. %d rewrites left today.", outcome.Usage.RemainingToday)
		}
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeSuccess, Title: "Rewritten", Message: message,
		})
	case rewrite.KindNoTextSelected:
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeInfo, Title: "Nothing selected",
			Message: "Select some text, then press the shortcut.",
		})
	case rewrite.KindAuthRequired:
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Sign in required",
			Message: "Sign in to start rewriting.",
		})
	case rewrite.KindAuthExpired:
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Session expired",
			Message: "Your session expired. Please sign in again.",
		})
	case rewrite.KindRateLimited:
		message := "Too many requests. Try again shortly."
		if outcome.RetryAfter > 0 {
			message = fmt.Sprintf("Too many requests. Try again in %d seconds.", outcome.RetryAfter)
		}
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Slow down", Message: message,
		})
	case rewrite.KindQuotaExceeded:
		message := "You reached today's rewrite limit."
		if outcome.PlanName != "" {
			message = fmt.Sprintf("You reached the daily limit of the %s plan.", outcome.PlanName)
		}
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Daily limit reached", Message: message,
		})
	case rewrite.KindValidationError:
		message := outcome.Message
		if message == "" {
			message = "The service rejected the text."
		}
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Could not rewrite", Message: message,
		})
	case rewrite.KindNetworkError:
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Connection failed",
			Message: "Could not reach the rewrite service. Check your connection.",
		})
	default:
		message := "Something went wrong. Please try again."
		if outcome.Raw == input.ErrPermissionDenied.Error() {
			message = "Grant Accessibility and input permissions to redraft, then try again."
		}
		o.mailbox.Publish(notify.Event{
			Type: notify.TypeError, Title: "Rewrite failed", Message: message,
		})
	}
}

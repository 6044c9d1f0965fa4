// Package capture obtains the user's current selection through the
// clipboard. Issuing a synthetic copy and reading the clipboard races
// against the focused application's clipboard write, so the read is a
// bounded poll rather than a fixed delay.
package capture

import (
	"context"
	"errors"
	"strings"
	"time"

	"redraftd/internal/input"
	"redraftd/internal/logging"
)

// ErrNoTextSelected means the clipboard never changed to a usable value
// within the attempt ceiling: the user had nothing selected, or the focused
// application ignored the copy chord.
var ErrNoTextSelected = errors.New("capture: no text selected")

// Defaults for the poll loop. 15 attempts at 120ms is a ceiling of roughly
// two seconds, enough for slow clipboard managers without making a missed
// selection feel hung.
const (
	DefaultPollInterval = 120 * time.Millisecond
	DefaultMaxAttempts  = 15
	DefaultSettleDelay  = 200 * time.Millisecond
)

// Result describes a completed capture.
type Result struct {
	Text            string
	Attempts        int
	DeadlineReached bool // text came from the ceiling fallback, not a poll hit
}

// Capturer drives an input.Driver to lift the selection and to deliver the
// rewritten text back to the focused application.
type Capturer struct {
	driver       input.Driver
	pollInterval time.Duration
	maxAttempts  int
	settleDelay  time.Duration
	log          *logging.Logger
}

// Option adjusts Capturer timing.
type Option func(*Capturer)

// WithPollInterval sets the clipboard poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Capturer) { c.pollInterval = d }
}

// WithMaxAttempts sets the poll attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(c *Capturer) { c.maxAttempts = n }
}

// WithSettleDelay sets the pause between writing the clipboard and pasting.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Capturer) { c.settleDelay = d }
}

// New builds a Capturer over the given driver.
func New(driver input.Driver, log *logging.Logger, opts ...Option) *Capturer {
	if log == nil {
		log = logging.Default()
	}
	c := &Capturer{
		driver:       driver,
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		settleDelay:  DefaultSettleDelay,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture snapshots the clipboard, issues a synthetic copy, and polls until
// the clipboard holds a value that is non-empty after trimming and differs
// from the snapshot. At the ceiling it falls back to whatever is on the
// clipboard; an empty or unchanged fallback is ErrNoTextSelected.
func (c *Capturer) Capture(ctx context.Context) (*Result, error) {
	previous, err := c.driver.ReadClipboard()
	if err != nil {
		return nil, err
	}

	if err := c.driver.TriggerCopy(); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		current, err := c.driver.ReadClipboard()
		if err != nil {
			return nil, err
		}
		if qualifies(current, previous) {
			c.log.Debug("selection captured",
				"attempts", attempt, "chars", len(current))
			return &Result{Text: current, Attempts: attempt}, nil
		}
	}

	// Ceiling reached. Some applications write the clipboard without
	// changing its value (re-copying identical text); accept the current
	// content if it is at least non-empty and fresh relative to the
	// snapshot.
	current, err := c.driver.ReadClipboard()
	if err != nil {
		return nil, err
	}
	if qualifies(current, previous) {
		return &Result{Text: current, Attempts: c.maxAttempts, DeadlineReached: true}, nil
	}

	c.log.Debug("capture ceiling reached with no qualifying clipboard value",
		"attempts", c.maxAttempts)
	return nil, ErrNoTextSelected
}

// Deliver writes text to the clipboard, waits for it to settle, and pastes
// it into the focused application.
func (c *Capturer) Deliver(ctx context.Context, text string) error {
	if err := c.driver.WriteClipboard(text); err != nil {
		return err
	}

	// Clipboard writes propagate asynchronously; pasting immediately can
	// paste the previous content.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settleDelay):
	}

	return c.driver.TriggerPaste()
}

func qualifies(current, previous string) bool {
	return strings.TrimSpace(current) != "" && current != previous
}

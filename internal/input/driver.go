// Package input abstracts the OS clipboard and synthetic key events. The
// capture pipeline drives it to lift the user's selection (synthetic copy,
// clipboard read) and to deliver the rewrite (clipboard write, synthetic
// paste).
package input

import "errors"

// Driver errors.
var (
	// ErrPermissionDenied means the OS blocked synthetic input. On macOS
	// this is the Accessibility permission; the caller should prompt once.
	ErrPermissionDenied = errors.New("input: synthetic input not permitted")

	// ErrPlatformUnsupported means no driver exists for this platform.
	ErrPlatformUnsupported = errors.New("input: platform not supported")
)

// Driver is the platform interface for clipboard access and key injection.
// Implementations are safe for use from a single goroutine; the capture
// pipeline serializes all calls.
type Driver interface {
	// Name identifies the backend ("cocoa", "win32", "x11").
	Name() string

	// ReadClipboard returns the current text clipboard content. Empty
	// string with nil error when the clipboard holds no text.
	ReadClipboard() (string, error)

	// WriteClipboard replaces the clipboard content with text.
	WriteClipboard(text string) error

	// TriggerCopy injects the platform copy chord into the focused
	// application (Cmd+C on macOS, Ctrl+C elsewhere).
	TriggerCopy() error

	// TriggerPaste injects the platform paste chord.
	TriggerPaste() error
}

// NewDriver returns the driver for the current platform, or
// ErrPlatformUnsupported.
func NewDriver() (Driver, error) {
	return newPlatformDriver()
}

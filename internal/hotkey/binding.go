// Package hotkey registers the process-wide shortcut that triggers a
// rewrite. One binding at a time; the platform listener feeds presses into
// a channel the orchestrator drains.
package hotkey

import (
	"fmt"
	"strings"
)

// Binding is a parsed shortcut like "ctrl+shift+e".
type Binding struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool // Cmd on macOS, Win key on Windows, Super on Linux
	Key   rune // lowercase letter or digit
}

// ParseBinding parses a "+"-separated binding string. Modifier aliases:
// control/ctrl, shift, alt/option, meta/cmd/super/win. The final token must
// be a single letter or digit.
func ParseBinding(s string) (Binding, error) {
	var b Binding

	tokens := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(tokens) < 2 {
		return b, fmt.Errorf("hotkey: binding %q needs at least one modifier", s)
	}

	for _, tok := range tokens[:len(tokens)-1] {
		switch strings.TrimSpace(tok) {
		case "ctrl", "control":
			b.Ctrl = true
		case "shift":
			b.Shift = true
		case "alt", "option":
			b.Alt = true
		case "meta", "cmd", "command", "super", "win":
			b.Meta = true
		default:
			return b, fmt.Errorf("hotkey: unknown modifier %q in %q", tok, s)
		}
	}

	key := strings.TrimSpace(tokens[len(tokens)-1])
	if len(key) != 1 {
		return b, fmt.Errorf("hotkey: key %q must be a single letter or digit", key)
	}
	r := rune(key[0])
	if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
		return b, fmt.Errorf("hotkey: key %q must be a letter or digit", key)
	}
	b.Key = r

	if !b.Ctrl && !b.Shift && !b.Alt && !b.Meta {
		return b, fmt.Errorf("hotkey: binding %q has no modifier", s)
	}
	return b, nil
}

func (b Binding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "ctrl")
	}
	if b.Shift {
		parts = append(parts, "shift")
	}
	if b.Alt {
		parts = append(parts, "alt")
	}
	if b.Meta {
		parts = append(parts, "meta")
	}
	parts = append(parts, string(b.Key))
	return strings.Join(parts, "+")
}

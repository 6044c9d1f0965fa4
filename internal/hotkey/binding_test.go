package hotkey

import "testing"

func TestParseBinding(t *testing.T) {
	tests := []struct {
		in   string
		want Binding
	}{
		{"ctrl+shift+e", Binding{Ctrl: true, Shift: true, Key: 'e'}},
		{"CTRL+SHIFT+E", Binding{Ctrl: true, Shift: true, Key: 'e'}},
		{"cmd+shift+e", Binding{Meta: true, Shift: true, Key: 'e'}},
		{"control+alt+1", Binding{Ctrl: true, Alt: true, Key: '1'}},
		{"super+r", Binding{Meta: true, Key: 'r'}},
		{" ctrl + shift + e ", Binding{Ctrl: true, Shift: true, Key: 'e'}},
	}

	for _, tt := range tests {
		got, err := ParseBinding(tt.in)
		if err != nil {
			t.Errorf("ParseBinding(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBinding(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseBindingRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"e",            // no modifier
		"ctrl+",        // no key
		"ctrl+enter",   // multi-char key
		"hyper+e",      // unknown modifier
		"ctrl+shift+%", // not a letter or digit
	} {
		if _, err := ParseBinding(in); err == nil {
			t.Errorf("ParseBinding(%q) should fail", in)
		}
	}
}

func TestBindingString(t *testing.T) {
	b := Binding{Ctrl: true, Shift: true, Key: 'e'}
	if got := b.String(); got != "ctrl+shift+e" {
		t.Errorf("String() = %q", got)
	}
}

func TestManagerCoalescesAndGates(t *testing.T) {
	m := NewManager(Binding{Ctrl: true, Key: 'e'}, nil)

	// Multiple fires while nothing drains coalesce to one pending press.
	m.fire()
	m.fire()
	m.fire()

	select {
	case <-m.Presses():
	default:
		t.Fatal("expected a pending press")
	}
	select {
	case <-m.Presses():
		t.Fatal("presses should have coalesced")
	default:
	}

	// Disabled presses are dropped.
	m.SetEnabled(false)
	m.fire()
	select {
	case <-m.Presses():
		t.Fatal("disabled press delivered")
	default:
	}

	m.SetEnabled(true)
	m.fire()
	select {
	case <-m.Presses():
	default:
		t.Fatal("re-enabled press not delivered")
	}
}

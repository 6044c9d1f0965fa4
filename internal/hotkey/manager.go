package hotkey

import (
	"context"
	"errors"
	"sync/atomic"

	"redraftd/internal/logging"
)

// ErrUnsupported means no hotkey backend exists for this platform or
// session type.
var ErrUnsupported = errors.New("hotkey: registration not supported here")

// Manager owns the registered binding and gates delivery behind an enabled
// flag, so the UI can toggle the shortcut without re-registering it.
type Manager struct {
	binding Binding
	enabled atomic.Bool
	presses chan struct{}
	log     *logging.Logger
}

// NewManager builds a manager for the binding. It starts enabled.
func NewManager(binding Binding, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	m := &Manager{
		binding: binding,
		presses: make(chan struct{}, 1),
		log:     log,
	}
	m.enabled.Store(true)
	return m
}

// Start registers the binding with the OS and delivers presses until ctx is
// canceled. The listener goroutine is owned by the manager.
func (m *Manager) Start(ctx context.Context) error {
	if err := listen(ctx, m.binding, m.fire); err != nil {
		return err
	}
	m.log.Info("global shortcut registered", "binding", m.binding.String())
	return nil
}

// Presses returns the press channel. Capacity one: presses arriving while
// an invocation is in flight coalesce, matching the drop-not-queue policy.
func (m *Manager) Presses() <-chan struct{} {
	return m.presses
}

// SetEnabled toggles delivery. Disabled presses are dropped silently.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
	m.log.Info("global shortcut toggled", "enabled", enabled)
}

// Enabled reports the current toggle state.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// Binding returns the registered binding.
func (m *Manager) Binding() Binding {
	return m.binding
}

func (m *Manager) fire() {
	if !m.enabled.Load() {
		return
	}
	select {
	case m.presses <- struct{}{}:
	default:
		// A press is already pending; coalesce.
	}
}

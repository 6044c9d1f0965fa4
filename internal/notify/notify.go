// Package notify carries outcome events from the core to whoever renders
// them: IPC subscribers (the tray UI) and, where the platform allows, a
// native desktop notification. The core fires and forgets; rendering never
// blocks an invocation.
package notify

import (
	"sync"

	"redraftd/internal/logging"
)

// Type classifies an event for rendering.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
)

// Event is one user-visible notification.
type Event struct {
	Type    Type   `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Mailbox fans events out to subscribers. Publishing never blocks: a
// subscriber that stops draining loses events rather than stalling the
// orchestrator.
type Mailbox struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
	log  *logging.Logger
}

const subscriberBuffer = 16

// NewMailbox builds an empty mailbox.
func NewMailbox(log *logging.Logger) *Mailbox {
	if log == nil {
		log = logging.Default()
	}
	return &Mailbox{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel.
func (m *Mailbox) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (m *Mailbox) Publish(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug("event published",
		"type", string(event.Type), "title", event.Title)

	for id, ch := range m.subs {
		select {
		case ch <- event:
		default:
			m.log.Warn("subscriber buffer full, dropping event", "subscriber", id)
		}
	}
}

// Notifier renders events natively. Implementations are best effort: a
// failed render is logged, never propagated.
type Notifier interface {
	Notify(event Event) error
}

// NewNotifier returns the platform notifier, which may be a no-op.
func NewNotifier(log *logging.Logger) Notifier {
	return newPlatformNotifier(log)
}

// Forward pumps mailbox events into a notifier until the subscription is
// canceled. Run it in its own goroutine.
func Forward(events <-chan Event, n Notifier, log *logging.Logger) {
	if log == nil {
		log = logging.Default()
	}
	for event := range events {
		if err := n.Notify(event); err != nil {
			log.Warn("desktop notification failed", "error", err)
		}
	}
}

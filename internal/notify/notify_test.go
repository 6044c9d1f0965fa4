package notify

import (
	"testing"
	"time"
)

func TestMailboxFanOut(t *testing.T) {
	m := NewMailbox(nil)

	a, cancelA := m.Subscribe()
	b, cancelB := m.Subscribe()
	defer cancelA()
	defer cancelB()

	sent := Event{Type: TypeSuccess, Title: "Rewritten", Message: "done"}
	m.Publish(sent)

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got != sent {
				t.Errorf("subscriber %s got %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s never received the event", name)
		}
	}
}

func TestMailboxCancelClosesChannel(t *testing.T) {
	m := NewMailbox(nil)

	ch, cancel := m.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	m.Publish(Event{Type: TypeInfo, Title: "x"})

	// Cancel is idempotent.
	cancel()
}

func TestMailboxFullSubscriberDropsNotBlocks(t *testing.T) {
	m := NewMailbox(nil)

	ch, cancel := m.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			m.Publish(Event{Type: TypeInfo, Title: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", got, subscriberBuffer)
	}
}

package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCoordinator(ttl time.Duration) (*Coordinator, *LocalChannel) {
	logger := zerolog.Nop()
	channel := NewLocalChannel()
	return NewCoordinator(channel, nil, ttl, &logger), channel
}

func connect(channel *LocalChannel, addr SignalingAddress) *Client {
	c := NewClient("conn-"+addr.String(), addr, addr.String())
	channel.Attach(c)
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drainEvents collects whatever is buffered after a short settle period.
func drainEvents(ch <-chan *Event) []*Event {
	time.Sleep(50 * time.Millisecond)

	var out []*Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for _, ev := range drainEvents(ch) {
		if ev.Kind == kind {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func mustStatus(t *testing.T, c *Coordinator, id CallID, want CallStatus) SessionSnapshot {
	t.Helper()

	snap, err := c.Session(id)
	if err != nil {
		t.Fatalf("session snapshot: %v", err)
	}
	if snap.Status != want {
		t.Fatalf("expected status %q, got %q", want, snap.Status)
	}
	return snap
}

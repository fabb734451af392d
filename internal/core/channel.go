package core

import (
	"context"
	"sync"
)

// SignalingChannel is the outbound event transport the coordinator fans out
// through. Delivery is fire-and-forget: a failure to reach one recipient
// never aborts the session mutation that already committed.
type SignalingChannel interface {
	// Send delivers an event to one signaling address.
	// Returns ErrRecipientNotConnected if no live connection exists.
	Send(addr SignalingAddress, ev *Event) error

	// Broadcast delivers an event to every subscriber of a call.
	Broadcast(id CallID, ev *Event)

	// Subscribe adds an address to a call's broadcast set.
	Subscribe(id CallID, addr SignalingAddress)

	// Unsubscribe removes an address from a call's broadcast set.
	Unsubscribe(id CallID, addr SignalingAddress)

	// DropCall discards a call's broadcast set entirely.
	DropCall(id CallID)

	// IsReachable reports whether the address has a live connection.
	IsReachable(addr SignalingAddress) bool
}

// LocalChannel is the in-process SignalingChannel. Transports attach one
// Client per connected peer; the coordinator maintains per-call subscriber
// sets through Subscribe/Unsubscribe.
type LocalChannel struct {
	mu      sync.RWMutex
	clients map[SignalingAddress]*Client
	calls   map[CallID]map[SignalingAddress]struct{}
	waiters map[SignalingAddress][]chan struct{}
}

// NewLocalChannel constructs an empty channel.
func NewLocalChannel() *LocalChannel {
	return &LocalChannel{
		clients: make(map[SignalingAddress]*Client),
		calls:   make(map[CallID]map[SignalingAddress]struct{}),
		waiters: make(map[SignalingAddress][]chan struct{}),
	}
}

// Attach registers a client connection for its address, replacing any prior
// connection for the same address.
func (ch *LocalChannel) Attach(c *Client) {
	ch.mu.Lock()
	ch.clients[c.Address] = c
	pending := ch.waiters[c.Address]
	delete(ch.waiters, c.Address)
	ch.mu.Unlock()

	for _, w := range pending {
		close(w)
	}
}

// Detach removes the client unless the address was re-attached by a newer
// connection in the meantime.
func (ch *LocalChannel) Detach(c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if current, ok := ch.clients[c.Address]; ok && current == c {
		delete(ch.clients, c.Address)
	}
}

// Send implements SignalingChannel.
func (ch *LocalChannel) Send(addr SignalingAddress, ev *Event) error {
	ch.mu.RLock()
	c, ok := ch.clients[addr]
	ch.mu.RUnlock()
	if !ok {
		return ErrRecipientNotConnected
	}
	c.push(ev)
	return nil
}

// Broadcast implements SignalingChannel. Unreachable subscribers are
// skipped; slow consumers drop events.
func (ch *LocalChannel) Broadcast(id CallID, ev *Event) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	for addr := range ch.calls[id] {
		if c, ok := ch.clients[addr]; ok {
			c.push(ev)
		}
	}
}

// Subscribe implements SignalingChannel.
func (ch *LocalChannel) Subscribe(id CallID, addr SignalingAddress) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.calls[id] == nil {
		ch.calls[id] = make(map[SignalingAddress]struct{})
	}
	ch.calls[id][addr] = struct{}{}
}

// Unsubscribe implements SignalingChannel.
func (ch *LocalChannel) Unsubscribe(id CallID, addr SignalingAddress) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if subs, ok := ch.calls[id]; ok {
		delete(subs, addr)
		if len(subs) == 0 {
			delete(ch.calls, id)
		}
	}
}

// DropCall implements SignalingChannel.
func (ch *LocalChannel) DropCall(id CallID) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.calls, id)
}

// IsReachable implements SignalingChannel.
func (ch *LocalChannel) IsReachable(addr SignalingAddress) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	_, ok := ch.clients[addr]
	return ok
}

// AwaitReachable blocks until the address attaches or ctx is done. This is
// the connection-readiness primitive clients use instead of polling.
func (ch *LocalChannel) AwaitReachable(ctx context.Context, addr SignalingAddress) error {
	ch.mu.Lock()
	if _, ok := ch.clients[addr]; ok {
		ch.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	ch.waiters[addr] = append(ch.waiters[addr], ready)
	ch.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

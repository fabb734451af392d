package core

import (
	"context"
	"errors"
	"sync"
)

// OfferFunc creates and sends one handshake offer to a peer.
type OfferFunc func(ctx context.Context, peer SignalingAddress) error

// OfferPolicy decides which peers must receive a handshake offer. It runs on
// the initiator's side only; non-initiators respond to offers and never
// create their own, which avoids glare without a role-election protocol.
//
// The tracking set is scoped to one session so concurrent calls on the same
// client never cross-contaminate.
type OfferPolicy struct {
	mu        sync.Mutex
	callID    CallID
	self      SignalingAddress
	initiator bool
	offered   map[SignalingAddress]struct{}
}

// NewOfferPolicy builds the policy for one session. self is the local
// signaling address; initiator tells whether this side created the call.
func NewOfferPolicy(callID CallID, self SignalingAddress, initiator bool) *OfferPolicy {
	return &OfferPolicy{
		callID:    callID,
		self:      self,
		initiator: initiator,
		offered:   make(map[SignalingAddress]struct{}),
	}
}

// CallID returns the session this policy belongs to.
func (p *OfferPolicy) CallID() CallID {
	return p.callID
}

// OnParticipantJoined handles a participant-joined observation: it offers to
// every active participant not yet offered to, at most once per peer per
// session, regardless of how many times the event is delivered.
//
// A peer is marked before its offer is issued; if the offer fails the mark
// is removed so the next event can retry.
func (p *OfferPolicy) OnParticipantJoined(ctx context.Context, active []SignalingAddress, offer OfferFunc) error {
	if !p.initiator {
		return nil
	}

	pending := p.claim(active)
	var errs []error
	for _, peer := range pending {
		if err := offer(ctx, peer); err != nil {
			p.release(peer)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// claim marks every not-yet-offered peer and returns them.
func (p *OfferPolicy) claim(active []SignalingAddress) []SignalingAddress {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := make([]SignalingAddress, 0, len(active))
	for _, peer := range active {
		if peer == p.self {
			continue
		}
		if _, done := p.offered[peer]; done {
			continue
		}
		p.offered[peer] = struct{}{}
		pending = append(pending, peer)
	}
	return pending
}

func (p *OfferPolicy) release(peer SignalingAddress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.offered, peer)
}

// Offered reports whether an offer was already issued to the peer.
func (p *OfferPolicy) Offered(peer SignalingAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.offered[peer]
	return ok
}

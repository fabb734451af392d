package core

import (
	"encoding/json"
	"time"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventCallInitiated notifies intended recipients of a new call.
	EventCallInitiated EventKind = iota
	// EventParticipantJoined notifies call members that someone joined.
	EventParticipantJoined
	// EventParticipantLeft notifies call members that someone left.
	EventParticipantLeft
	// EventMediaToggled notifies call members of an audio/video toggle.
	EventMediaToggled
	// EventCallEnded notifies call members that the call terminated.
	EventCallEnded
	// EventSignal carries a relayed handshake payload to one recipient.
	EventSignal
	// EventError reports a domain error to the client that caused it.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind   EventKind
	Call   *CallEventData
	Signal *SignalData
	Error  *CoreError
}

// CallEventData holds data shared by call lifecycle events. Fields are
// populated per kind; unused ones stay zero.
type CallEventData struct {
	CallID         CallID
	ConversationID string
	Mode           CallMode
	Initiator      SignalingAddress
	Participant    *ParticipantSnapshot
	Address        SignalingAddress
	MediaType      MediaType
	Enabled        bool
	Duration       time.Duration
	Participants   []ParticipantSnapshot
}

// SignalData is an opaque handshake blob (offer, answer or ICE candidate)
// relayed verbatim between two signaling addresses. The core never inspects
// Payload.
type SignalData struct {
	CallID  CallID
	From    SignalingAddress
	To      SignalingAddress
	Payload json.RawMessage
}

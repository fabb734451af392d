package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello       = "hello"
	InboundTypeInitiate    = "call:initiate"
	InboundTypeJoin        = "call:join"
	InboundTypeLeave       = "call:leave"
	InboundTypeToggleAudio = "call:toggle-audio"
	InboundTypeToggleVideo = "call:toggle-video"
	InboundTypeSignal      = "call:signal"
	InboundTypeEnd         = "call:end"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameInitiated         = "call:initiated"
	EventNameParticipantJoined = "call:participant-joined"
	EventNameParticipantLeft   = "call:participant-left"
	EventNameMediaToggled      = "call:media-toggled"
	EventNameEnded             = "call:ended"
	EventNameSignal            = "call:signal"
	EventNameError             = "call:error"
)

// HelloData is sent first on every connection to present identity.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// InitiateData requests a new call for a conversation.
type InitiateData struct {
	ConversationID string   `json:"conversationId"`
	Mode           string   `json:"mode"`
	Recipients     []string `json:"recipients,omitempty"`
}

// CallSettings are the media flags a participant joins with.
// Omitted flags default to enabled.
type CallSettings struct {
	AudioEnabled *bool `json:"audioEnabled,omitempty"`
	VideoEnabled *bool `json:"videoEnabled,omitempty"`
}

// JoinData requests to join a call.
type JoinData struct {
	CallID   string       `json:"callId"`
	Settings CallSettings `json:"settings"`
}

// LeaveData requests to leave (or end) a call.
type LeaveData struct {
	CallID string `json:"callId"`
}

// ToggleData flips the sender's audio or video flag.
type ToggleData struct {
	CallID  string `json:"callId"`
	Enabled bool   `json:"enabled"`
}

// SignalData relays an opaque handshake blob to one recipient.
type SignalData struct {
	CallID  string          `json:"callId"`
	To      string          `json:"toId"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ParticipantInfo describes one participant in outbound events.
type ParticipantInfo struct {
	ID           string `json:"id"`
	Addr         string `json:"addr"`
	Username     string `json:"username,omitempty"`
	AudioEnabled bool   `json:"audioEnabled"`
	VideoEnabled bool   `json:"videoEnabled"`
	JoinedAt     int64  `json:"joinedAt"`
	LeftAt       *int64 `json:"leftAt,omitempty"`
}

// EventInitiated announces a new call to its intended recipients.
type EventInitiated struct {
	CallID         string            `json:"callId"`
	ConversationID string            `json:"conversationId"`
	Mode           string            `json:"mode"`
	Initiator      string            `json:"initiator"`
	Participants   []ParticipantInfo `json:"participants"`
}

// EventParticipantJoined announces a join to call members.
type EventParticipantJoined struct {
	CallID      string          `json:"callId"`
	Participant ParticipantInfo `json:"participant"`
}

// EventParticipantLeft announces a departure to call members.
type EventParticipantLeft struct {
	CallID        string `json:"callId"`
	ParticipantID string `json:"participantId"`
}

// EventMediaToggled announces an audio/video toggle to call members.
type EventMediaToggled struct {
	CallID        string `json:"callId"`
	ParticipantID string `json:"participantId"`
	MediaType     string `json:"mediaType"`
	Enabled       bool   `json:"enabled"`
}

// EventEnded announces call termination with the elapsed duration.
type EventEnded struct {
	CallID     string `json:"callId"`
	DurationMS int64  `json:"duration"`
}

// EventSignal carries a relayed handshake payload.
type EventSignal struct {
	CallID  string          `json:"callId"`
	FromID  string          `json:"fromId"`
	ToID    string          `json:"toId"`
	Payload json.RawMessage `json:"payload"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

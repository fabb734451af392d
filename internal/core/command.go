package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandInitiateCall creates a new call session.
	CommandInitiateCall CommandKind = iota
	// CommandJoinCall adds the caller to an existing call.
	CommandJoinCall
	// CommandLeaveCall removes the caller from a call.
	CommandLeaveCall
	// CommandToggleMedia flips the caller's audio or video flag.
	CommandToggleMedia
	// CommandRelaySignal forwards a handshake payload to one recipient.
	CommandRelaySignal
	// CommandEndCall terminates the call for everyone.
	CommandEndCall
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// Initiate
	ConversationID string
	Mode           CallMode
	Recipients     []SignalingAddress

	// Join / Leave / Toggle / Relay / End
	CallID       CallID
	AudioEnabled bool
	VideoEnabled bool
	MediaType    MediaType
	Enabled      bool
	To           SignalingAddress
	Payload      json.RawMessage
}

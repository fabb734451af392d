package core

import "github.com/google/uuid"

// CallID identifies one call session from initiation to termination.
type CallID string

// NewCallID returns a fresh call identifier.
func NewCallID() CallID {
	return CallID(uuid.New().String())
}

func (id CallID) String() string {
	return string(id)
}

// ParticipantRecordID is the storage key of a participant record inside a
// session. It is never used for routing signaling messages.
type ParticipantRecordID uuid.UUID

// NewParticipantRecordID returns a fresh participant record identifier.
func NewParticipantRecordID() ParticipantRecordID {
	return ParticipantRecordID(uuid.New())
}

func (id ParticipantRecordID) String() string {
	return uuid.UUID(id).String()
}

// SignalingAddress is the routing identifier for delivering signaling events
// to a human: a user id or an anonymous session id. Relay and offer APIs
// accept only this type, never ParticipantRecordID.
type SignalingAddress string

func (a SignalingAddress) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a SignalingAddress) IsZero() bool {
	return a == ""
}

package core

import "time"

// CallMode defines the media kind of a call, fixed at creation.
type CallMode string

const (
	CallModeAudio CallMode = "audio"
	CallModeVideo CallMode = "video"
)

// ValidCallMode reports whether m is a known call mode.
func ValidCallMode(m CallMode) bool {
	return m == CallModeAudio || m == CallModeVideo
}

// CallStatus is the session state machine position.
type CallStatus string

const (
	// CallStatusInitiated means the call was created and nobody besides the
	// initiator has joined yet.
	CallStatusInitiated CallStatus = "initiated"
	// CallStatusActive means at least one non-initiator participant joined.
	CallStatusActive CallStatus = "active"
	// CallStatusEnded is terminal.
	CallStatusEnded CallStatus = "ended"
)

// MediaType names a toggleable media track.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// CallParticipant is one participant record within a session.
// Address routes signaling to the human; ID is the storage key only.
type CallParticipant struct {
	ID             ParticipantRecordID
	Address        SignalingAddress
	Username       string
	IsAudioEnabled bool
	IsVideoEnabled bool
	JoinedAt       time.Time
	LeftAt         *time.Time
}

// CallSession is one logical call instance. All mutation goes through the
// Coordinator under the per-session lock held by the Registry entry.
type CallSession struct {
	ID             CallID
	ConversationID string
	Mode           CallMode
	Status         CallStatus
	Initiator      SignalingAddress
	StartedAt      time.Time
	EndedAt        *time.Time

	// participants keeps join order; index is keyed by signaling address.
	participants []*CallParticipant
	index        map[SignalingAddress]*CallParticipant
}

// NewCallSession creates a session in the initiated state.
func NewCallSession(conversationID string, mode CallMode, initiator SignalingAddress) *CallSession {
	return &CallSession{
		ID:             NewCallID(),
		ConversationID: conversationID,
		Mode:           mode,
		Status:         CallStatusInitiated,
		Initiator:      initiator,
		StartedAt:      time.Now(),
		index:          make(map[SignalingAddress]*CallParticipant),
	}
}

// ParticipantSnapshot is an immutable copy of a participant record, safe to
// hand to transports and broadcasts while the session keeps mutating.
type ParticipantSnapshot struct {
	ID             ParticipantRecordID
	Address        SignalingAddress
	Username       string
	IsAudioEnabled bool
	IsVideoEnabled bool
	JoinedAt       time.Time
	LeftAt         *time.Time
}

// SessionSnapshot is an immutable copy of the session state.
type SessionSnapshot struct {
	ID             CallID
	ConversationID string
	Mode           CallMode
	Status         CallStatus
	Initiator      SignalingAddress
	StartedAt      time.Time
	EndedAt        *time.Time
	Participants   []ParticipantSnapshot
}

func snapshotParticipant(p *CallParticipant) ParticipantSnapshot {
	snap := ParticipantSnapshot{
		ID:             p.ID,
		Address:        p.Address,
		Username:       p.Username,
		IsAudioEnabled: p.IsAudioEnabled,
		IsVideoEnabled: p.IsVideoEnabled,
		JoinedAt:       p.JoinedAt,
	}
	if p.LeftAt != nil {
		left := *p.LeftAt
		snap.LeftAt = &left
	}
	return snap
}

// Snapshot copies the full session state, participants in join order.
func (s *CallSession) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:             s.ID,
		ConversationID: s.ConversationID,
		Mode:           s.Mode,
		Status:         s.Status,
		Initiator:      s.Initiator,
		StartedAt:      s.StartedAt,
		Participants:   make([]ParticipantSnapshot, 0, len(s.participants)),
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		snap.EndedAt = &ended
	}
	for _, p := range s.participants {
		snap.Participants = append(snap.Participants, snapshotParticipant(p))
	}
	return snap
}

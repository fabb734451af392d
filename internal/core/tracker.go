package core

import "time"

// Participant bookkeeping. LeftAt interpretation is centralized here: the
// rest of the codebase asks IsActive / ActiveParticipants instead of
// null-checking the field inline.

// IsActive reports whether the participant has not left the session.
func (p *CallParticipant) IsActive() bool {
	return p.LeftAt == nil
}

// AddParticipant inserts or reactivates a participant record, keyed by
// signaling address. Re-adding an active participant merges settings instead
// of duplicating the record. Returns the record and whether it was already
// active (duplicate delivery of a join).
func (s *CallSession) AddParticipant(addr SignalingAddress, username string, audioEnabled, videoEnabled bool) (*CallParticipant, bool) {
	now := time.Now()
	if p, ok := s.index[addr]; ok {
		if p.IsActive() {
			p.IsAudioEnabled = audioEnabled
			p.IsVideoEnabled = videoEnabled
			return p, true
		}
		// Re-join after leaving: reactivate the same record, last write wins.
		p.LeftAt = nil
		p.JoinedAt = now
		p.IsAudioEnabled = audioEnabled
		p.IsVideoEnabled = videoEnabled
		return p, false
	}

	p := &CallParticipant{
		ID:             NewParticipantRecordID(),
		Address:        addr,
		Username:       username,
		IsAudioEnabled: audioEnabled,
		IsVideoEnabled: videoEnabled,
		JoinedAt:       now,
	}
	s.participants = append(s.participants, p)
	s.index[addr] = p
	return p, false
}

// RemoveParticipant marks the participant as left. The record is retained
// for post-call accounting.
func (s *CallSession) RemoveParticipant(addr SignalingAddress) (*CallParticipant, error) {
	p, ok := s.index[addr]
	if !ok || !p.IsActive() {
		return nil, ErrParticipantNotFound
	}
	now := time.Now()
	p.LeftAt = &now
	return p, nil
}

// UpdateMedia applies an audio/video toggle to the participant's own record.
func (s *CallSession) UpdateMedia(addr SignalingAddress, media MediaType, enabled bool) (*CallParticipant, error) {
	p, ok := s.index[addr]
	if !ok || !p.IsActive() {
		return nil, ErrParticipantNotFound
	}
	switch media {
	case MediaTypeAudio:
		p.IsAudioEnabled = enabled
	case MediaTypeVideo:
		p.IsVideoEnabled = enabled
	default:
		return nil, ErrBadRequest
	}
	return p, nil
}

// ActiveParticipants returns snapshots of all participants that have not
// left, in join order.
func (s *CallSession) ActiveParticipants() []ParticipantSnapshot {
	active := make([]ParticipantSnapshot, 0, len(s.participants))
	for _, p := range s.participants {
		if p.IsActive() {
			active = append(active, snapshotParticipant(p))
		}
	}
	return active
}

// ActiveAddresses returns the signaling addresses of active participants.
func (s *CallSession) ActiveAddresses() []SignalingAddress {
	addrs := make([]SignalingAddress, 0, len(s.participants))
	for _, p := range s.participants {
		if p.IsActive() {
			addrs = append(addrs, p.Address)
		}
	}
	return addrs
}

// Participant looks up a record by signaling address, active or not.
func (s *CallSession) Participant(addr SignalingAddress) (*CallParticipant, bool) {
	p, ok := s.index[addr]
	return p, ok
}

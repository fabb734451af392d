package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Call is the accounting record of one call session.
type Call struct {
	ID             string
	ConversationID string
	Mode           string
	Initiator      string
	Status         string
	StartedAt      time.Time
	EndedAt        *time.Time
}

// CallParticipant is the accounting record of one participant. ID is the
// participant record id; Address is the signaling address of the human.
type CallParticipant struct {
	ID             string
	CallID         string
	Address        string
	Username       string
	IsAudioEnabled bool
	IsVideoEnabled bool
	JoinedAt       time.Time
	LeftAt         *time.Time
}

// Store persists call history for post-call accounting. The coordinator
// writes best-effort; a store failure never fails a live session.
type Store interface {
	// CreateCall inserts a new call record.
	CreateCall(ctx context.Context, call *Call) error

	// UpdateCallStatus updates status and, when terminal, the end time.
	UpdateCallStatus(ctx context.Context, callID, status string, endedAt *time.Time) error

	// GetCall retrieves a call by id.
	GetCall(ctx context.Context, callID string) (*Call, error)

	// ListActiveCalls lists non-ended calls the address participates in.
	ListActiveCalls(ctx context.Context, address string) ([]*Call, error)

	// AddParticipant inserts or revives a participant record.
	AddParticipant(ctx context.Context, p *CallParticipant) error

	// UpdateParticipant updates an existing participant record.
	UpdateParticipant(ctx context.Context, p *CallParticipant) error

	// ListParticipants lists all participant records of a call, join order.
	ListParticipants(ctx context.Context, callID string) ([]*CallParticipant, error)

	// Close releases underlying resources.
	Close() error
}

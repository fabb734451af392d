package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshcall/meshcall-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	mode            TEXT NOT NULL,
	initiator       TEXT NOT NULL,
	status          TEXT NOT NULL,
	started_at      DATETIME NOT NULL,
	ended_at        DATETIME
);

CREATE TABLE IF NOT EXISTS call_participants (
	id               TEXT PRIMARY KEY,
	call_id          TEXT NOT NULL REFERENCES calls(id),
	address          TEXT NOT NULL,
	username         TEXT NOT NULL DEFAULT '',
	is_audio_enabled BOOLEAN NOT NULL DEFAULT 1,
	is_video_enabled BOOLEAN NOT NULL DEFAULT 1,
	joined_at        DATETIME NOT NULL,
	left_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_call_participants_call ON call_participants(call_id);
CREATE INDEX IF NOT EXISTS idx_call_participants_addr ON call_participants(address);
`

// New opens the database file and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateCall inserts a new call record.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *store.Call) error {
	query := `
		INSERT INTO calls (id, conversation_id, mode, initiator, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		call.ID, call.ConversationID, call.Mode, call.Initiator, call.Status, call.StartedAt)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// UpdateCallStatus updates status and, when terminal, the end time.
func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, callID, status string, endedAt *time.Time) error {
	query := `UPDATE calls SET status = ?, ended_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, status, endedAt, callID)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetCall retrieves a call by id.
func (s *SQLiteStore) GetCall(ctx context.Context, callID string) (*store.Call, error) {
	query := `
		SELECT id, conversation_id, mode, initiator, status, started_at, ended_at
		FROM calls
		WHERE id = ?
	`
	var call store.Call
	err := s.db.QueryRowContext(ctx, query, callID).Scan(
		&call.ID, &call.ConversationID, &call.Mode, &call.Initiator,
		&call.Status, &call.StartedAt, &call.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select call: %w", err)
	}
	return &call, nil
}

// ListActiveCalls lists non-ended calls the address participates in.
func (s *SQLiteStore) ListActiveCalls(ctx context.Context, address string) ([]*store.Call, error) {
	query := `
		SELECT DISTINCT c.id, c.conversation_id, c.mode, c.initiator, c.status, c.started_at, c.ended_at
		FROM calls c
		JOIN call_participants p ON p.call_id = c.id
		WHERE c.status != 'ended' AND p.address = ? AND p.left_at IS NULL
		ORDER BY c.started_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("select active calls: %w", err)
	}
	defer rows.Close()

	calls := make([]*store.Call, 0)
	for rows.Next() {
		var call store.Call
		if err := rows.Scan(&call.ID, &call.ConversationID, &call.Mode, &call.Initiator,
			&call.Status, &call.StartedAt, &call.EndedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, &call)
	}
	return calls, rows.Err()
}

// AddParticipant inserts or revives a participant record. Re-joining reuses
// the same record id, so conflicts upsert instead of failing.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *store.CallParticipant) error {
	query := `
		INSERT INTO call_participants (id, call_id, address, username, is_audio_enabled, is_video_enabled, joined_at, left_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			joined_at = excluded.joined_at,
			is_audio_enabled = excluded.is_audio_enabled,
			is_video_enabled = excluded.is_video_enabled,
			left_at = NULL
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.CallID, p.Address, p.Username, p.IsAudioEnabled, p.IsVideoEnabled, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// UpdateParticipant updates an existing participant record.
func (s *SQLiteStore) UpdateParticipant(ctx context.Context, p *store.CallParticipant) error {
	query := `
		UPDATE call_participants
		SET is_audio_enabled = ?, is_video_enabled = ?, joined_at = ?, left_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		p.IsAudioEnabled, p.IsVideoEnabled, p.JoinedAt, p.LeftAt, p.ID)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListParticipants lists all participant records of a call in join order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, callID string) ([]*store.CallParticipant, error) {
	query := `
		SELECT id, call_id, address, username, is_audio_enabled, is_video_enabled, joined_at, left_at
		FROM call_participants
		WHERE call_id = ?
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*store.CallParticipant, 0)
	for rows.Next() {
		var p store.CallParticipant
		if err := rows.Scan(&p.ID, &p.CallID, &p.Address, &p.Username,
			&p.IsAudioEnabled, &p.IsVideoEnabled, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

package journal

import (
	"database/sql"
	"time"
)

// Event is one dispatched lifecycle message.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository stores lifecycle messages.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this journal.
func (j *Journal) Events() *EventRepository {
	return &EventRepository{db: j.db}
}

// Append inserts e and sets its ID. An empty SessionID is stored as NULL.
func (r *EventRepository) Append(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var sessionID sql.NullString
	if e.SessionID != "" {
		sessionID = sql.NullString{String: e.SessionID, Valid: true}
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, message, created_at) VALUES (?, ?, ?)`,
		sessionID, e.Message, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession returns the events of one session in the order they were
// recorded.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	return r.query(
		`SELECT id, session_id, message, created_at FROM events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
}

// Recent returns the latest events across all sessions, newest first.
func (r *EventRepository) Recent(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(
		`SELECT id, session_id, message, created_at FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (r *EventRepository) query(q string, args ...any) ([]*Event, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var sessionID sql.NullString
		if err := rows.Scan(&e.ID, &sessionID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SessionID = sessionID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

package journal

import (
	"database/sql"
	"errors"
	"time"
)

// Session status values.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Counters are the frame statistics of a finished session.
type Counters struct {
	Delivered uint64
	Dropped   uint64
	Converted uint64
	Faults    uint64
}

// Session is one capture from STARTED to STOPPED.
type Session struct {
	ID        string     `json:"id"`
	Camera    string     `json:"camera"`
	Width     uint32     `json:"width"`
	Height    uint32     `json:"height"`
	Status    string     `json:"status"`
	Counters  Counters   `json:"counters"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// SessionRepository stores capture sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this journal.
func (j *Journal) Sessions() *SessionRepository {
	return &SessionRepository{db: j.db}
}

// Begin inserts s as running. StartedAt is set to now when zero.
func (r *SessionRepository) Begin(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	s.Status = StatusRunning

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, camera, width, height, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Camera, s.Width, s.Height, s.Status, s.StartedAt,
	)
	return err
}

// Finish marks the session stopped and stores its counters.
func (r *SessionRepository) Finish(id string, c Counters) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, delivered = ?, dropped = ?, converted = ?, faults = ?, stopped_at = ?
		 WHERE id = ?`,
		StatusStopped, int64(c.Delivered), int64(c.Dropped), int64(c.Converted), int64(c.Faults), time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionColumns = `id, camera, width, height, status, delivered, dropped, converted, faults, started_at, stopped_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var delivered, dropped, converted, faults int64
	var stoppedAt sql.NullTime

	err := row.Scan(&s.ID, &s.Camera, &s.Width, &s.Height, &s.Status,
		&delivered, &dropped, &converted, &faults, &s.StartedAt, &stoppedAt)
	if err != nil {
		return nil, err
	}

	s.Counters = Counters{
		Delivered: uint64(delivered),
		Dropped:   uint64(dropped),
		Converted: uint64(converted),
		Faults:    uint64(faults),
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time
		s.StoppedAt = &t
	}
	return s, nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first. A limit of zero or less
// returns all of them.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

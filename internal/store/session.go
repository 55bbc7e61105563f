package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Session is a stored game session.
type Session struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	LeftPunches  int             `json:"left_punches"`
	RightPunches int             `json:"right_punches"`
	Score        int             `json:"score"`
	Lives        int             `json:"lives"`
	MeanSpeed    float64         `json:"mean_speed"`
	MaxSpeed     float64         `json:"max_speed"`
	Config       json.RawMessage `json:"config"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, mode, started_at, ended_at, left_punches, right_punches,
	score, lives, mean_speed, max_speed, config`

// Create inserts a new session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	config := sess.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Mode, sess.StartedAt, nullTime(sess.EndedAt),
		sess.LeftPunches, sess.RightPunches, sess.Score, sess.Lives,
		sess.MeanSpeed, sess.MaxSpeed, string(config),
	)
	return err
}

// Update stores the running totals and end time of a session.
func (r *SessionRepository) Update(sess *Session) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, left_punches = ?, right_punches = ?,
		 score = ?, lives = ?, mean_speed = ?, max_speed = ?
		 WHERE id = ?`,
		nullTime(sess.EndedAt), sess.LeftPunches, sess.RightPunches,
		sess.Score, sess.Lives, sess.MeanSpeed, sess.MaxSpeed, sess.ID,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves the most recent sessions first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and its punches.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	var config string

	err := row.Scan(&sess.ID, &sess.Mode, &sess.StartedAt, &ended,
		&sess.LeftPunches, &sess.RightPunches, &sess.Score, &sess.Lives,
		&sess.MeanSpeed, &sess.MaxSpeed, &config)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	sess.Config = json.RawMessage(config)
	return sess, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

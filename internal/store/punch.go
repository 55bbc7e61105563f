package store

import (
	"database/sql"
	"time"
)

// Punch is a stored punch event.
type Punch struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Side      string    `json:"side"`
	Speed     float64   `json:"speed"`
	SpeedAvg  float64   `json:"speed_avg"`
	Points    int       `json:"points"`
	Timestamp float64   `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// PunchRepository provides operations for punches.
type PunchRepository struct {
	db *sql.DB
}

// Punches returns the punch repository for this store.
func (s *Store) Punches() *PunchRepository {
	return &PunchRepository{db: s.db}
}

// Create inserts a punch. The session must already exist.
func (r *PunchRepository) Create(p *Punch) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO punches (id, session_id, side, speed, speed_avg, points, ts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.Side, p.Speed, p.SpeedAvg, p.Points, p.Timestamp, p.CreatedAt,
	)
	return err
}

// ListBySession returns the punches of a session in the order they landed.
func (r *PunchRepository) ListBySession(sessionID string) ([]*Punch, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, side, speed, speed_avg, points, ts, created_at
		 FROM punches WHERE session_id = ? ORDER BY ts ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var punches []*Punch
	for rows.Next() {
		p := &Punch{}
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Side, &p.Speed, &p.SpeedAvg, &p.Points, &p.Timestamp, &p.CreatedAt); err != nil {
			return nil, err
		}
		punches = append(punches, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return punches, nil
}

// CountBySession returns the number of punches per side for a session.
func (r *PunchRepository) CountBySession(sessionID string) (left, right int, err error) {
	rows, err := r.db.Query(
		`SELECT side, COUNT(*) FROM punches WHERE session_id = ? GROUP BY side`,
		sessionID,
	)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var side string
		var n int
		if err := rows.Scan(&side, &n); err != nil {
			return 0, 0, err
		}
		if side == "right" {
			right = n
		} else {
			left = n
		}
	}
	return left, right, rows.Err()
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the streaming process.
type Session struct {
	ID             string     `json:"session_id"`
	StartedAt      time.Time  `json:"started_at"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	Format         string     `json:"format"`
	Targets        []string   `json:"targets"`
	Sweeps         uint64     `json:"sweeps"`
	PacketsSent    uint64     `json:"packets_sent"`
	PacketsDropped uint64     `json:"packets_dropped"`
}

// SessionTotals are the counters written when a session finishes.
type SessionTotals struct {
	Sweeps         uint64
	PacketsSent    uint64
	PacketsDropped uint64
}

// StartSession inserts a new open session.
func (db *DB) StartSession(s Session) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	_, err := db.Exec(`
		INSERT INTO sessions (session_id, started_at, format, targets)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.Format, strings.Join(s.Targets, ","))
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

// FinishSession stamps the stop time and final counters of a session.
func (db *DB) FinishSession(id string, stoppedAt time.Time, totals SessionTotals) error {
	res, err := db.Exec(`
		UPDATE sessions
		SET stopped_at = ?, sweeps = ?, packets_sent = ?, packets_dropped = ?
		WHERE session_id = ?`,
		stoppedAt.UnixNano(), totals.Sweeps, totals.PacketsSent, totals.PacketsDropped, id)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// GetSession loads one session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT session_id, started_at, stopped_at, format, targets, sweeps, packets_sent, packets_dropped
		FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// RecentSessions returns up to limit sessions, newest first.
func (db *DB) RecentSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT session_id, started_at, stopped_at, format, targets, sweeps, packets_sent, packets_dropped
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s       Session
		started int64
		stopped sql.NullInt64
		targets string
	)
	if err := r.Scan(&s.ID, &started, &stopped, &s.Format, &targets,
		&s.Sweeps, &s.PacketsSent, &s.PacketsDropped); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if stopped.Valid {
		t := time.Unix(0, stopped.Int64).UTC()
		s.StoppedAt = &t
	}
	if targets != "" {
		s.Targets = strings.Split(targets, ",")
	}
	return &s, nil
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/monitoring"
)

// ConfigUpdate is one persisted configuration change. Payload holds the keys
// that were sent, Snapshot the full configuration after the change.
type ConfigUpdate struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	AppliedAt time.Time       `json:"applied_at"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// RecordConfigUpdate stores an accepted update against a session.
func (db *DB) RecordConfigUpdate(sessionID string, u config.Update) error {
	payload, err := json.Marshal(u.Payload)
	if err != nil {
		return fmt.Errorf("encode update payload: %w", err)
	}
	snapshot, err := json.Marshal(u.Config)
	if err != nil {
		return fmt.Errorf("encode config snapshot: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO config_updates (session_id, applied_at, source, payload, snapshot)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, u.AppliedAt.UnixNano(), u.Source, string(payload), string(snapshot))
	if err != nil {
		return fmt.Errorf("insert config update: %w", err)
	}
	return nil
}

// ConfigRecorder returns a config.Store subscriber that persists every
// accepted update. Failures are logged; the update itself has already been
// published.
func (db *DB) ConfigRecorder(sessionID string) func(config.Update) {
	return func(u config.Update) {
		if err := db.RecordConfigUpdate(sessionID, u); err != nil {
			monitoring.Logf("[db] %v", err)
		}
	}
}

// LatestConfigSnapshot returns the configuration stored with the most recent
// update. ok is false when nothing has been recorded.
func (db *DB) LatestConfigSnapshot() (cfg config.RuntimeConfig, ok bool, err error) {
	var snapshot string
	err = db.QueryRow(`
		SELECT snapshot FROM config_updates
		ORDER BY applied_at DESC, id DESC LIMIT 1`).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return config.RuntimeConfig{}, false, nil
	}
	if err != nil {
		return config.RuntimeConfig{}, false, fmt.Errorf("query latest config: %w", err)
	}

	cfg, err = config.DecodeSnapshot([]byte(snapshot))
	if err != nil {
		return config.RuntimeConfig{}, false, fmt.Errorf("decode latest config: %w", err)
	}
	return cfg, true, nil
}

// RecentConfigUpdates returns up to limit updates, newest first.
func (db *DB) RecentConfigUpdates(limit int) ([]ConfigUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, session_id, applied_at, source, payload, snapshot
		FROM config_updates
		ORDER BY applied_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query config updates: %w", err)
	}
	defer rows.Close()

	updates := []ConfigUpdate{}
	for rows.Next() {
		var (
			u                 ConfigUpdate
			appliedAt         int64
			payload, snapshot string
		)
		if err := rows.Scan(&u.ID, &u.SessionID, &appliedAt, &u.Source, &payload, &snapshot); err != nil {
			return nil, fmt.Errorf("scan config update: %w", err)
		}
		u.AppliedAt = time.Unix(0, appliedAt).UTC()
		u.Payload = json.RawMessage(payload)
		u.Snapshot = json.RawMessage(snapshot)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

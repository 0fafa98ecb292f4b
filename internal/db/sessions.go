package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when no row has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// Session is one row of the registry. Times are unix seconds.
type Session struct {
	ID              string   `json:"session_id"`
	Source          string   `json:"source"`
	Status          string   `json:"status"`
	StartedAt       float64  `json:"started_at"`
	FinishedAt      *float64 `json:"finished_at,omitempty"`
	FramesProcessed int64    `json:"frames_processed"`
	MetricsEmitted  int64    `json:"metrics_emitted"`
	ConfigJSON      string   `json:"config_json"`
}

// Duration is the wall-clock length of a finished session, or zero.
func (s Session) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return time.Duration((*s.FinishedAt - s.StartedAt) * float64(time.Second))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// StartSession inserts a session, or restarts one with the same id.
func (db *DB) StartSession(ctx context.Context, id, source, status, configJSON string, startedAt time.Time) error {
	if configJSON == "" {
		configJSON = "{}"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, source, status, started_at, config_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = NULL,
			frames_processed = 0,
			metrics_emitted = 0,
			config_json = excluded.config_json
	`, id, source, status, unixSeconds(startedAt), configJSON)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", id, err)
	}
	return nil
}

// UpdateSessionProgress records the latest status and frame count.
func (db *DB) UpdateSessionProgress(ctx context.Context, id, status string, frames int64) error {
	return db.updateSession(ctx, `UPDATE sessions SET status = ?, frames_processed = ? WHERE session_id = ?`, id, status, frames, id)
}

// IncrementMetricsEmitted counts one published estimate.
func (db *DB) IncrementMetricsEmitted(ctx context.Context, id string) error {
	return db.updateSession(ctx, `UPDATE sessions SET metrics_emitted = metrics_emitted + 1 WHERE session_id = ?`, id, id)
}

// FinishSession marks a session finished.
func (db *DB) FinishSession(ctx context.Context, id, status string, frames int64, finishedAt time.Time) error {
	return db.updateSession(ctx, `
		UPDATE sessions SET status = ?, frames_processed = ?, finished_at = ?
		WHERE session_id = ?
	`, id, status, frames, unixSeconds(finishedAt), id)
}

func (db *DB) updateSession(ctx context.Context, query, id string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `session_id, source, status, started_at, finished_at, frames_processed, metrics_emitted, config_json`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var s Session
	var finished sql.NullFloat64
	if err := row.Scan(&s.ID, &s.Source, &s.Status, &s.StartedAt, &finished, &s.FramesProcessed, &s.MetricsEmitted, &s.ConfigJSON); err != nil {
		return Session{}, err
	}
	if finished.Valid {
		f := finished.Float64
		s.FinishedAt = &f
	}
	return s, nil
}

// GetSession returns one session.
func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// ListSessions returns the most recently started sessions first. A limit
// of zero or less returns every row.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

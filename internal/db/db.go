// Package db persists capture sessions and sampled per-frame statistics to
// sqlite, and exposes admin/debugging routes over the database.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// StartSession records the beginning of a capture session and returns its ID.
func (db *DB) StartSession(camera, adapter string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		"INSERT INTO sessions (session_id, camera, adapter) VALUES (?, ?, ?)",
		id, camera, adapter,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	_, err := db.Exec(
		"UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// FrameStat is the persisted summary of one capture result. Temperatures are
// stored in Kelvin; display conversion happens at the API layer.
type FrameStat struct {
	SessionID         string
	FrameID           string
	MinKelvin         float64
	MaxKelvin         float64
	DisplayLowKelvin  float64
	DisplayHighKelvin float64
	RealFPS           float64
	ReportedFPS       float64
	RecordedAt        time.Time
}

// RecordFrameStat inserts one frame summary.
func (db *DB) RecordFrameStat(fs FrameStat) error {
	_, err := db.Exec(`
		INSERT INTO frame_stats (
			session_id, frame_id, min_kelvin, max_kelvin,
			display_low_kelvin, display_high_kelvin, real_fps, reported_fps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fs.SessionID, fs.FrameID, fs.MinKelvin, fs.MaxKelvin,
		fs.DisplayLowKelvin, fs.DisplayHighKelvin, fs.RealFPS, fs.ReportedFPS,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame stats: %w", err)
	}
	return nil
}

// RecentFrameStats returns up to limit of the most recent frame summaries
// for a session, newest first.
func (db *DB) RecentFrameStats(sessionID string, limit int) ([]FrameStat, error) {
	rows, err := db.Query(`
		SELECT session_id, frame_id, min_kelvin, max_kelvin,
			display_low_kelvin, display_high_kelvin, real_fps, reported_fps, recorded_at
		FROM frame_stats
		WHERE session_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FrameStat
	for rows.Next() {
		var fs FrameStat
		if err := rows.Scan(
			&fs.SessionID, &fs.FrameID, &fs.MinKelvin, &fs.MaxKelvin,
			&fs.DisplayLowKelvin, &fs.DisplayHighKelvin, &fs.RealFPS, &fs.ReportedFPS, &fs.RecordedAt,
		); err != nil {
			return nil, err
		}
		stats = append(stats, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// SessionCount returns the number of recorded sessions.
func (db *DB) SessionCount() (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Package capture persists DoIP frames exchanged by a conversation to
// SQLite for offline inspection and replay, grounded on the teacher's
// internal/datastore.SQLiteStore (table-per-concern schema, errors wrapped
// with fmt.Errorf, mattn/go-sqlite3 driver).
package capture

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding capture sessions and frames.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if necessary) the SQLite database at dbPath and
// ensures its schema exists.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("capture: opening database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS capture_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_name TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS capture_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			direction TEXT NOT NULL,
			payload_type INTEGER NOT NULL,
			source_address INTEGER NOT NULL,
			target_address INTEGER NOT NULL,
			data BLOB,
			FOREIGN KEY (session_id) REFERENCES capture_sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_capture_frames_session
			ON capture_frames(session_id, timestamp)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("capture: creating schema: %w", err)
		}
	}
	return nil
}

// StartSession inserts a new capture session row and returns its id.
func (s *Store) StartSession(conversationName string, startedAt time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO capture_sessions (conversation_name, started_at) VALUES (?, ?)`,
		conversationName, startedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("capture: starting session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("capture: reading session id: %w", err)
	}
	return id, nil
}

// EndSession marks a capture session as ended.
func (s *Store) EndSession(sessionID int64, endedAt time.Time) error {
	if _, err := s.db.Exec(
		`UPDATE capture_sessions SET ended_at = ? WHERE id = ?`,
		endedAt, sessionID,
	); err != nil {
		return fmt.Errorf("capture: ending session %d: %w", sessionID, err)
	}
	return nil
}

// Frame is one captured DoIP frame, as stored in capture_frames.
type Frame struct {
	Timestamp     time.Time
	Direction     string
	PayloadType   uint16
	SourceAddress uint16
	TargetAddress uint16
	Data          []byte
}

// InsertFrame records one frame against sessionID.
func (s *Store) InsertFrame(sessionID int64, f Frame) error {
	_, err := s.db.Exec(
		`INSERT INTO capture_frames (
			session_id, timestamp, direction, payload_type, source_address, target_address, data
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, f.Timestamp, f.Direction, f.PayloadType, f.SourceAddress, f.TargetAddress, f.Data,
	)
	if err != nil {
		return fmt.Errorf("capture: inserting frame: %w", err)
	}
	return nil
}

// FramesForSession returns every frame captured for sessionID, ordered by
// timestamp, for replay or inspection tooling.
func (s *Store) FramesForSession(sessionID int64) ([]Frame, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, direction, payload_type, source_address, target_address, data
			FROM capture_frames WHERE session_id = ? ORDER BY timestamp`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("capture: querying frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.Timestamp, &f.Direction, &f.PayloadType, &f.SourceAddress, &f.TargetAddress, &f.Data); err != nil {
			return nil, fmt.Errorf("capture: scanning frame row: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("capture: closing database: %w", err)
	}
	return nil
}

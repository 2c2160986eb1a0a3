package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/clickspan/agent/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type Database struct {
	db *sql.DB
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	// Single-record store: the tracker keeps no per-click history, only the
	// latest session state.
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS session_state(
	  id         INTEGER PRIMARY KEY CHECK (id = 1),
	  saved_at   INTEGER NOT NULL,
	  state_json TEXT    NOT NULL CHECK (json_valid(state_json))
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveState replaces the persisted record with state.
func (d *Database) SaveState(state models.SessionState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO session_state(id, saved_at, state_json) VALUES(1, ?, json(?))
		 ON CONFLICT(id) DO UPDATE SET saved_at=excluded.saved_at, state_json=excluded.state_json`,
		state.SavedAt, string(jsonData),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState returns the persisted record, or (nil, nil) when none exists yet.
func (d *Database) LoadState() (*models.SessionState, error) {
	var jsonData string
	err := d.db.QueryRow(`SELECT state_json FROM session_state WHERE id = 1`).Scan(&jsonData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	var state models.SessionState
	if err := json.Unmarshal([]byte(jsonData), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

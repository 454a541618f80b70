// Package storage persists schedules, escalation policies, escalation
// timers, and the append-only escalation history in SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store provides access to the four on-call tables
type Store struct {
	logger *zap.Logger
	db     *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and ensures the
// schema exists.
func Open(logger *zap.Logger, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		logger: logger.Named("storage"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			team TEXT NOT NULL,
			rotation_type TEXT NOT NULL,
			start_date TEXT NOT NULL,
			engineers TEXT NOT NULL,
			handoff_hour INTEGER NOT NULL DEFAULT 9,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			escalation_minutes INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_team ON schedules(team);

		CREATE TABLE IF NOT EXISTS escalation_policy_levels (
			team TEXT NOT NULL,
			level INTEGER NOT NULL,
			wait_minutes INTEGER NOT NULL,
			notify_target TEXT NOT NULL,
			PRIMARY KEY (team, level)
		);

		CREATE TABLE IF NOT EXISTS escalation_timers (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL,
			team TEXT NOT NULL,
			current_level INTEGER NOT NULL,
			assigned_to TEXT NOT NULL,
			escalate_after DATETIME NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_timers_incident ON escalation_timers(incident_id);
		CREATE INDEX IF NOT EXISTS idx_timers_active_after ON escalation_timers(active, escalate_after);

		CREATE TABLE IF NOT EXISTS escalations (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL,
			from_engineer TEXT,
			to_engineer TEXT NOT NULL,
			level INTEGER NOT NULL,
			reason TEXT,
			escalated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_escalations_incident ON escalations(incident_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

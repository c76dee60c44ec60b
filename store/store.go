// Package store persists plugin state in SQLite. It remembers which plugins are
// enabled so a restarted host can enable them again, and keeps a history of the
// lifecycle events it observed.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoPath is returned when Open is called without a database path.
var ErrNoPath = errors.New("store: database path is required")

// Event is a recorded lifecycle event.
type Event struct {
	ID         string
	PluginID   string
	Type       string
	Operation  string
	Error      string
	OccurredAt time.Time
}

// Store is a SQLite backed plugin state store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SetEnabled records whether a plugin is enabled.
func (s *Store) SetEnabled(ctx context.Context, pluginID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_state (plugin_id, enabled, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (plugin_id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		pluginID, enabled, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store state of %s: %w", pluginID, err)
	}
	return nil
}

// Forget removes every record of a plugin's state.
func (s *Store) Forget(ctx context.Context, pluginID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plugin_state WHERE plugin_id = ?`, pluginID); err != nil {
		return fmt.Errorf("failed to forget %s: %w", pluginID, err)
	}
	return nil
}

// EnabledPlugins returns the ids of the plugins recorded as enabled, sorted.
func (s *Store) EnabledPlugins(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT plugin_id FROM plugin_state WHERE enabled = 1 ORDER BY plugin_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled plugins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan plugin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordEvent appends an event to the history. Recording an event id twice is
// a no-op.
func (s *Store) RecordEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_events (event_id, plugin_id, event_type, operation, error, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		e.ID, e.PluginID, e.Type, e.Operation, e.Error, e.OccurredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", e.ID, err)
	}
	return nil
}

// History returns up to limit of the most recent events of a plugin, oldest
// first. A limit of zero or less returns every event.
func (s *Store) History(ctx context.Context, pluginID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, plugin_id, event_type, operation, error, occurred_at FROM (
			SELECT rowid AS seq, * FROM plugin_events WHERE plugin_id = ?
			ORDER BY occurred_at DESC, seq DESC LIMIT ?
		) ORDER BY occurred_at, seq`, pluginID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s: %w", pluginID, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.PluginID, &e.Type, &e.Operation, &e.Error, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.OccurredAt = time.Unix(0, ns)
		events = append(events, e)
	}
	return events, rows.Err()
}

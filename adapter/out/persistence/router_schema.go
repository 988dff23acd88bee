// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"query_router/core/domain"
	"query_router/core/port/out"
)

// Dialect of the connected database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectOf maps a database/sql driver name to a dialect.
func DialectOf(db *sqlx.DB) Dialect {
	switch db.DriverName() {
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id     TEXT PRIMARY KEY,
		channel       TEXT NOT NULL,
		sender        TEXT,
		subject       TEXT,
		message       TEXT NOT NULL,
		intent        TEXT NOT NULL,
		urgency       TEXT NOT NULL,
		assigned_team TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'open',
		response      TEXT,
		metadata      JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status)`,
	`CREATE TABLE IF NOT EXISTS routing_log (
		id         BIGSERIAL PRIMARY KEY,
		ticket_id  TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL DEFAULT '{}',
		timestamp  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_routing_log_ticket ON routing_log (ticket_id)`,
	`CREATE INDEX IF NOT EXISTS idx_routing_log_type ON routing_log (event_type)`,
	`CREATE TABLE IF NOT EXISTS learning_patterns (
		id            BIGSERIAL PRIMARY KEY,
		pattern_type  TEXT NOT NULL,
		pattern_key   TEXT NOT NULL,
		pattern_value TEXT NOT NULL,
		confidence    DOUBLE PRECISION NOT NULL,
		usage_count   INTEGER NOT NULL DEFAULT 1,
		last_used     TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		UNIQUE (pattern_type, pattern_key, pattern_value)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_feedback (
		id               BIGSERIAL PRIMARY KEY,
		ticket_id        TEXT NOT NULL,
		original_intent  TEXT,
		corrected_intent TEXT,
		original_team    TEXT,
		corrected_team   TEXT,
		feedback_type    TEXT NOT NULL,
		feedback_data    JSONB NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learning_feedback_ticket ON learning_feedback (ticket_id)`,
	`CREATE TABLE IF NOT EXISTS teams (
		name        TEXT PRIMARY KEY,
		email       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id     TEXT PRIMARY KEY,
		channel       TEXT NOT NULL,
		sender        TEXT,
		subject       TEXT,
		message       TEXT NOT NULL,
		intent        TEXT NOT NULL,
		urgency       TEXT NOT NULL,
		assigned_team TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'open',
		response      TEXT,
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status)`,
	`CREATE TABLE IF NOT EXISTS routing_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id  TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data TEXT NOT NULL DEFAULT '{}',
		timestamp  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_routing_log_ticket ON routing_log (ticket_id)`,
	`CREATE INDEX IF NOT EXISTS idx_routing_log_type ON routing_log (event_type)`,
	`CREATE TABLE IF NOT EXISTS learning_patterns (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern_type  TEXT NOT NULL,
		pattern_key   TEXT NOT NULL,
		pattern_value TEXT NOT NULL,
		confidence    REAL NOT NULL,
		usage_count   INTEGER NOT NULL DEFAULT 1,
		last_used     TIMESTAMP NOT NULL,
		created_at    TIMESTAMP NOT NULL,
		UNIQUE (pattern_type, pattern_key, pattern_value)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_feedback (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id        TEXT NOT NULL,
		original_intent  TEXT,
		corrected_intent TEXT,
		original_team    TEXT,
		corrected_team   TEXT,
		feedback_type    TEXT NOT NULL,
		feedback_data    TEXT NOT NULL DEFAULT '{}',
		created_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learning_feedback_ticket ON learning_feedback (ticket_id)`,
	`CREATE TABLE IF NOT EXISTS teams (
		name        TEXT PRIMARY KEY,
		email       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates every table and index if missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := postgresSchema
	if DialectOf(db) == DialectSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// SeedTeams fills an empty team directory with the given teams.
func SeedTeams(ctx context.Context, repo out.TeamRepository, teams []domain.Team) (int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range teams {
		if err := repo.Upsert(ctx, &teams[i]); err != nil {
			return i, err
		}
	}
	return len(teams), nil
}

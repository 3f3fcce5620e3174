package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order exactly once; applied versions are tracked
// in the schema_migrations table.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		author_name    TEXT NOT NULL,
		category       TEXT NOT NULL,
		image          TEXT NOT NULL DEFAULT '',
		rating         REAL NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
		description    TEXT NOT NULL DEFAULT '',
		isbn           TEXT UNIQUE,
		published_year INTEGER,
		quantity       INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		available      INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id                     TEXT PRIMARY KEY,
		user_id                TEXT NOT NULL REFERENCES users (id),
		book_id                TEXT NOT NULL REFERENCES books (id),
		email                  TEXT NOT NULL,
		book_name              TEXT NOT NULL,
		author_name            TEXT NOT NULL,
		category               TEXT NOT NULL,
		image                  TEXT NOT NULL DEFAULT '',
		borrowed_at            TEXT NOT NULL,
		return_due_at          TEXT NOT NULL,
		return_requested_at    TEXT,
		return_date_edit_count INTEGER NOT NULL DEFAULT 0,
		status                 TEXT NOT NULL DEFAULT 'borrowed'
			CHECK (status IN ('borrowed', 'return_pending', 'returned')),
		fine                   REAL NOT NULL DEFAULT 0,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL
	)`,
	// One active borrow per (user, book); returned records do not block a
	// fresh borrow of the same title.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_records_active
		ON borrow_records (user_id, book_id)
		WHERE status IN ('borrowed', 'return_pending')`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_email
		ON borrow_records (email)`,
	`CREATE TABLE IF NOT EXISTS book_suggestions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users (id),
		email          TEXT NOT NULL,
		name           TEXT NOT NULL,
		author_name    TEXT NOT NULL,
		category       TEXT NOT NULL,
		image          TEXT NOT NULL DEFAULT '',
		rating         REAL NOT NULL DEFAULT 0,
		description    TEXT NOT NULL DEFAULT '',
		isbn           TEXT,
		published_year INTEGER,
		status         TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected')),
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id   TEXT PRIMARY KEY,
		expires_at TEXT NOT NULL,
		revoked_at TEXT NOT NULL
	)`,
}

// Migrate applies any pending schema migrations.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for version, statement := range migrations {
		applied, err := cp.migrationApplied(ctx, version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(statement); err != nil {
				return fmt.Errorf("migration %d failed: %w", version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (cp *ConnectionPool) migrationApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := cp.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return count > 0, nil
}

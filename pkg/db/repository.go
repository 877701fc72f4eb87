package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fly-io/flashcache-agent/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides journal operations
type Repository struct {
	db *sql.DB
}

// NewRepository opens the journal and creates its schema
func NewRepository(dbPath string) (*Repository, error) {
	slog.Debug("journal_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("journal_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open journal")
	}

	// Concurrent agent processes share the file
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("journal_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record inserts an invocation
func (r *Repository) Record(ctx context.Context, inv *Invocation) error {
	query := `
		INSERT INTO invocations (resource, action, status, exit_code, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		inv.Resource, inv.Action, inv.Status, inv.ExitCode, inv.ErrorMessage, inv.DurationMS)
	if err != nil {
		slog.Error("journal_insert_failed", "resource", inv.Resource, "action", inv.Action, "error", err)
		return errors.Wrap(err, "failed to insert invocation")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	inv.ID = id

	slog.Debug("journal_recorded", "id", inv.ID, "resource", inv.Resource, "action", inv.Action, "status", inv.Status)
	return nil
}

// List retrieves the most recent invocations, newest first. An empty
// resource matches every resource.
func (r *Repository) List(ctx context.Context, resource string, limit int) ([]*Invocation, error) {
	query := `
		SELECT id, resource, action, status, exit_code, error_message, duration_ms, created_at
		FROM invocations
		WHERE (? = '' OR resource = ?)
		ORDER BY id DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, resource, resource, limit)
	if err != nil {
		slog.Error("journal_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list invocations")
	}
	defer rows.Close()

	var invocations []*Invocation
	for rows.Next() {
		var inv Invocation
		var errorMessage sql.NullString

		if err := rows.Scan(
			&inv.ID, &inv.Resource, &inv.Action, &inv.Status, &inv.ExitCode,
			&errorMessage, &inv.DurationMS, &inv.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		inv.ErrorMessage = errorMessage.String

		invocations = append(invocations, &inv)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return invocations, nil
}

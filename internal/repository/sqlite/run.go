package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/model"
	"github.com/sakif/runbox/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.RunRepository = (*DB)(nil)

// Create inserts a new run record. The row id and created-at timestamp are
// generated here; the caller's struct is updated in place.
func (db *DB) Create(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, request_id, language, source, stdout, stderr, status, exit_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.RequestID,
		run.Language,
		run.Source,
		run.Stdout,
		run.Stderr,
		run.Status,
		run.ExitCode,
		run.DurationMS,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	return nil
}

// GetByID retrieves a single run by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, request_id, language, source, stdout, stderr, status, exit_code, duration_ms, created_at
		 FROM runs
		 WHERE id = ?`,
		id,
	).Scan(
		&run.ID,
		&run.RequestID,
		&run.Language,
		&run.Source,
		&run.Stdout,
		&run.Stderr,
		&run.Status,
		&run.ExitCode,
		&run.DurationMS,
		&run.CreatedAt,
	)

	if err != nil {
		// database/sql does not wrap ErrNoRows, so == is the check.
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}

	return &run, nil
}

// List retrieves runs newest-first with limit/offset pagination.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, request_id, language, source, stdout, stderr, status, exit_code, duration_ms, created_at
		 FROM runs
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)

	for rows.Next() {
		var r model.Run
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.Language, &r.Source,
			&r.Stdout, &r.Stderr, &r.Status, &r.ExitCode,
			&r.DurationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run record by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM runs WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting run %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("run", id)
	}

	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/Ard-Skelling/autogen/internal/apperror"
	"github.com/Ard-Skelling/autogen/internal/model"
	"github.com/Ard-Skelling/autogen/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.RunRepository = (*DB)(nil)

// Create inserts a run record. The run's ID and CreatedAt are set here;
// xid IDs are short, URL-safe, and sortable by creation time.
func (db *DB) Create(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, language, block_count, exit_code, output, code_file, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Language,
		run.BlockCount,
		run.ExitCode,
		run.Output,
		run.CodeFile,
		run.DurationMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, language, block_count, exit_code, output, code_file, duration_ms, created_at
		 FROM runs
		 WHERE id = ?`,
		id,
	).Scan(
		&run.ID,
		&run.Language,
		&run.BlockCount,
		&run.ExitCode,
		&run.Output,
		&run.CodeFile,
		&run.DurationMs,
		&run.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}

	return &run, nil
}

// List returns runs newest first with limit/offset pagination.
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
		`SELECT id, language, block_count, exit_code, output, code_file, duration_ms, created_at
		 FROM runs
		 ORDER BY created_at DESC, id DESC
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
			&r.ID, &r.Language, &r.BlockCount, &r.ExitCode,
			&r.Output, &r.CodeFile, &r.DurationMs, &r.CreatedAt,
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

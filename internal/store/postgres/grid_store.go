// Package postgres implements store.Store on Postgres via pgx.
//
// The layout matches the SQLite backend: a header table with the ordered
// column list per sheet and a rows table with one JSON-encoded cell array per
// row. OverwriteAll is fully transactional; pgx batching keeps the row
// inserts to one round trip.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

type gridStore struct {
	pool *pgxpool.Pool
}

func init() {
	store.Register("postgres", New)
}

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS sheet_headers (
  sheet   TEXT PRIMARY KEY,
  columns JSONB NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS sheet_rows (
  sheet   TEXT NOT NULL,
  row_idx INTEGER NOT NULL,
  cells   JSONB NOT NULL,
  PRIMARY KEY (sheet, row_idx)
);`,
}

// New creates a Postgres-backed grid store and ensures its schema exists.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	for _, ddl := range schemaSQL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: create schema: %w", err)
		}
	}
	return &gridStore{pool: pool}, nil
}

func (s *gridStore) Close() { s.pool.Close() }

func (s *gridStore) ReadAll(ctx context.Context, sheetName string) (sheet.Grid, error) {
	var g sheet.Grid

	var colsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT columns FROM sheet_headers WHERE sheet = $1`, sheetName,
	).Scan(&colsJSON)
	if err == pgx.ErrNoRows {
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("postgres: read header %s: %w", sheetName, err)
	}
	if err := json.Unmarshal(colsJSON, &g.Columns); err != nil {
		return g, fmt.Errorf("postgres: decode header %s: %w", sheetName, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = $1 ORDER BY row_idx`, sheetName,
	)
	if err != nil {
		return g, fmt.Errorf("postgres: read rows %s: %w", sheetName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cellsJSON []byte
		if err := rows.Scan(&cellsJSON); err != nil {
			return g, err
		}
		var cells []string
		if err := json.Unmarshal(cellsJSON, &cells); err != nil {
			return g, fmt.Errorf("postgres: decode row in %s: %w", sheetName, err)
		}
		g.Rows = append(g.Rows, cells)
	}
	return g, rows.Err()
}

func (s *gridStore) OverwriteAll(ctx context.Context, sheetName string, g sheet.Grid) error {
	colsJSON, err := json.Marshal(g.Columns)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM sheet_rows WHERE sheet = $1`, sheetName); err != nil {
		return fmt.Errorf("postgres: clear rows %s: %w", sheetName, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sheet_headers WHERE sheet = $1`, sheetName); err != nil {
		return fmt.Errorf("postgres: clear header %s: %w", sheetName, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO sheet_headers (sheet, columns) VALUES ($1, $2)`,
		sheetName, colsJSON,
	); err != nil {
		return fmt.Errorf("postgres: write header %s: %w", sheetName, err)
	}

	var batch pgx.Batch
	for i, cells := range g.Rows {
		cellsJSON, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES ($1, $2, $3)`,
			sheetName, i, cellsJSON,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, &batch).Close(); err != nil {
			return fmt.Errorf("postgres: write rows %s: %w", sheetName, err)
		}
	}

	return tx.Commit(ctx)
}

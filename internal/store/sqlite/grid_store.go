// Package sqlite implements store.Store on SQLite.
//
// Layout notes vs the server backends:
//   - One database file holds every sheet. A header table keeps the ordered
//     column list per sheet (JSON-encoded); a rows table keeps one
//     JSON-encoded cell array per row, positioned by row_idx.
//   - JSON text is used instead of a column-per-field schema because the grid
//     is schemaless by design: sheets grow columns over time and the store
//     must not care.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

type gridStore struct {
	db *sql.DB
}

func init() {
	store.Register("sqlite", New)
}

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS sheet_headers (
  sheet   TEXT PRIMARY KEY,
  columns TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS sheet_rows (
  sheet   TEXT NOT NULL,
  row_idx INTEGER NOT NULL,
  cells   TEXT NOT NULL,
  PRIMARY KEY (sheet, row_idx)
);`,
}

// New opens (and if needed creates) the SQLite-backed grid store at cfg.DSN.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, ddl := range schemaSQL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: create schema: %w", err)
		}
	}
	return &gridStore{db: db}, nil
}

func (s *gridStore) Close() { _ = s.db.Close() }

func (s *gridStore) ReadAll(ctx context.Context, sheetName string) (sheet.Grid, error) {
	var g sheet.Grid

	var colsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT columns FROM sheet_headers WHERE sheet = ?`, sheetName,
	).Scan(&colsJSON)
	if err == sql.ErrNoRows {
		// Never written: implicit empty sheet.
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("sqlite: read header %s: %w", sheetName, err)
	}
	if err := json.Unmarshal([]byte(colsJSON), &g.Columns); err != nil {
		return g, fmt.Errorf("sqlite: decode header %s: %w", sheetName, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_idx`, sheetName,
	)
	if err != nil {
		return g, fmt.Errorf("sqlite: read rows %s: %w", sheetName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return g, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return g, fmt.Errorf("sqlite: decode row in %s: %w", sheetName, err)
		}
		g.Rows = append(g.Rows, cells)
	}
	return g, rows.Err()
}

// OverwriteAll replaces the sheet in one transaction: delete everything, then
// insert the new header and rows. Readers see either the old or the new
// content, never a partial mix.
func (s *gridStore) OverwriteAll(ctx context.Context, sheetName string, g sheet.Grid) error {
	colsJSON, err := json.Marshal(g.Columns)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, sheetName); err != nil {
		return fmt.Errorf("sqlite: clear rows %s: %w", sheetName, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_headers WHERE sheet = ?`, sheetName); err != nil {
		return fmt.Errorf("sqlite: clear header %s: %w", sheetName, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheet_headers (sheet, columns) VALUES (?, ?)`,
		sheetName, string(colsJSON),
	); err != nil {
		return fmt.Errorf("sqlite: write header %s: %w", sheetName, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cells := range g.Rows {
		cellsJSON, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, sheetName, i, string(cellsJSON)); err != nil {
			return fmt.Errorf("sqlite: write row %d of %s: %w", i, sheetName, err)
		}
	}

	return tx.Commit()
}

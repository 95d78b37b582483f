// Package mssql implements store.Store on SQL Server.
//
// Same two-table layout as the other SQL backends. SQL Server has no native
// JSON column type; the JSON payloads live in NVARCHAR(MAX).
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

type gridStore struct {
	db *sql.DB
}

func init() {
	store.Register("mssql", New)
}

var schemaSQL = []string{
	`IF OBJECT_ID('sheet_headers', 'U') IS NULL
CREATE TABLE sheet_headers (
  sheet   NVARCHAR(256) NOT NULL PRIMARY KEY,
  columns NVARCHAR(MAX) NOT NULL
);`,
	`IF OBJECT_ID('sheet_rows', 'U') IS NULL
CREATE TABLE sheet_rows (
  sheet   NVARCHAR(256) NOT NULL,
  row_idx INT NOT NULL,
  cells   NVARCHAR(MAX) NOT NULL,
  CONSTRAINT pk_sheet_rows PRIMARY KEY (sheet, row_idx)
);`,
}

// New creates a SQL Server-backed grid store and ensures its schema exists.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
			return nil, fmt.Errorf("mssql: create schema: %w", err)
		}
	}
	return &gridStore{db: db}, nil
}

func (s *gridStore) Close() { _ = s.db.Close() }

func (s *gridStore) ReadAll(ctx context.Context, sheetName string) (sheet.Grid, error) {
	var g sheet.Grid

	var colsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT columns FROM sheet_headers WHERE sheet = @p1`, sheetName,
	).Scan(&colsJSON)
	if err == sql.ErrNoRows {
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("mssql: read header %s: %w", sheetName, err)
	}
	if err := json.Unmarshal([]byte(colsJSON), &g.Columns); err != nil {
		return g, fmt.Errorf("mssql: decode header %s: %w", sheetName, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = @p1 ORDER BY row_idx`, sheetName,
	)
	if err != nil {
		return g, fmt.Errorf("mssql: read rows %s: %w", sheetName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return g, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return g, fmt.Errorf("mssql: decode row in %s: %w", sheetName, err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = @p1`, sheetName); err != nil {
		return fmt.Errorf("mssql: clear rows %s: %w", sheetName, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_headers WHERE sheet = @p1`, sheetName); err != nil {
		return fmt.Errorf("mssql: clear header %s: %w", sheetName, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheet_headers (sheet, columns) VALUES (@p1, @p2)`,
		sheetName, string(colsJSON),
	); err != nil {
		return fmt.Errorf("mssql: write header %s: %w", sheetName, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sheet_rows (sheet, row_idx, cells) VALUES (@p1, @p2, @p3)`,
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
			return fmt.Errorf("mssql: write row %d of %s: %w", i, sheetName, err)
		}
	}

	return tx.Commit()
}

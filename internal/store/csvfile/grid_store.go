// Package csvfile implements store.Store as CSV files under a directory:
// one file per sheet, header row first. This is the local and test backend,
// and it demonstrates the bulk-overwrite contract in its purest form — a CSV
// file cannot be patched row-wise anyway.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

type gridStore struct {
	dir string
}

func init() {
	store.Register("csv", New)
}

// New creates a CSV-file grid store rooted at cfg.DSN (a directory path,
// created if missing).
func New(_ context.Context, cfg store.Config) (store.Store, error) {
	dir := strings.TrimSpace(cfg.DSN)
	if dir == "" {
		return nil, fmt.Errorf("csvfile: DSN must be a directory path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvfile: create dir: %w", err)
	}
	return &gridStore{dir: dir}, nil
}

func (s *gridStore) Close() {}

func (s *gridStore) path(sheetName string) string {
	// Sheet names come from config, not untrusted input, but keep them from
	// escaping the store directory.
	name := strings.ReplaceAll(sheetName, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, name+".csv")
}

func (s *gridStore) ReadAll(_ context.Context, sheetName string) (sheet.Grid, error) {
	var g sheet.Grid

	f, err := os.Open(s.path(sheetName))
	if os.IsNotExist(err) {
		// Never written: implicit empty sheet.
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("csvfile: open %s: %w", sheetName, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return g, fmt.Errorf("csvfile: read %s: %w", sheetName, err)
	}
	if len(records) == 0 {
		return g, nil
	}

	g.Columns = records[0]
	g.Rows = records[1:]
	return g, nil
}

// OverwriteAll writes the full grid to a temp file in the same directory and
// renames it over the old one, so a crash mid-write never leaves a truncated
// sheet behind.
func (s *gridStore) OverwriteAll(_ context.Context, sheetName string, g sheet.Grid) error {
	dst := s.path(sheetName)

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("csvfile: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(g.Columns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csvfile: write header %s: %w", sheetName, err)
	}
	for _, row := range g.Rows {
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("csvfile: write row %s: %w", sheetName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("csvfile: replace %s: %w", sheetName, err)
	}
	return nil
}

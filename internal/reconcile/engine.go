// Package reconcile orchestrates reconciliation passes: read the whole sheet,
// merge one producer's batch into it, write the whole sheet back.
//
// The engine is stateless between calls. A pass has exactly three states —
// loaded, merged, written — and there is no way to observe or resume a
// partially completed pass: if the final write fails, the sheet still holds
// its last successfully written content and the next scheduled pass simply
// re-reads and reconciles again. At-least-once, not exactly-once, is the
// explicit tradeoff; all three strategies converge under re-delivery.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fitsync/internal/keys"
	"fitsync/internal/merge"
	"fitsync/internal/metrics"
	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

// Logger is the minimal logging interface used by the engine and runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options tune pass behavior shared by every binding.
type Options struct {
	// StampColumn, when non-empty, is set to the fetch time on every valid
	// batch row before merging (e.g. "Last_Fetched_At").
	StampColumn string

	// Now is a clock seam for the stamp value. Nil means time.Now.
	Now func() time.Time
}

// Stats reports one reconciliation pass. Replaced counts rows removed by a
// replace-by-key pass before the batch was appended; see merge.Stats.
type Stats struct {
	Inserted int
	Updated  int
	Replaced int
	Skipped  int
	// Rows is the final row count of the written sheet.
	Rows int
}

// Apply performs the in-memory part of a pass, from current grid to new grid.
//
// It is pure apart from the optional stamp clock: no I/O, no retries, no
// shared state, which is what makes the engine safe to re-invoke repeatedly
// with the same inputs.
//
// Steps:
//  1. Load the snapshot (normalizes every existing row's key).
//  2. Normalize every incoming row's key with the same normalizer.
//  3. Extend the column set to the union of existing and incoming columns,
//     existing order preserved, new columns appended.
//  4. Apply the selected merge strategy.
//  5. Sort descending by the sort column (stable; unparseable values last).
//  6. Materialize the grid, replacing missing cells with explicit empties.
//
// Errors:
//   - Only an unknown strategy kind errors. Malformed rows are skipped and
//     counted, never fatal.
func Apply(current sheet.Grid, batch []sheet.Row, keyColumn, sortColumn string, kind merge.Kind, opts Options) (sheet.Grid, Stats, error) {
	snap := sheet.Load(current, keyColumn)

	prepared := prepareBatch(batch, keyColumn, opts)
	snap.EnsureColumns(prepared)

	ms, err := merge.Apply(kind, snap, prepared)
	if err != nil {
		return sheet.Grid{}, Stats{}, err
	}

	snap.SortByDesc(resolveSortColumn(snap, sortColumn, keyColumn))

	return snap.Grid(), Stats{
		Inserted: ms.Inserted,
		Updated:  ms.Updated,
		Replaced: ms.Replaced,
		Skipped:  ms.Skipped,
		Rows:     snap.Len(),
	}, nil
}

// prepareBatch clones incoming rows (Apply must not mutate caller data),
// normalizes their keys, and applies the fetch stamp.
func prepareBatch(batch []sheet.Row, keyColumn string, opts Options) []sheet.Row {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var stamp sheet.Value
	if opts.StampColumn != "" {
		stamp = sheet.String(now().Format(time.RFC3339))
	}

	out := make([]sheet.Row, 0, len(batch))
	for _, in := range batch {
		row := in.Clone()
		if k := row.Get(keyColumn); !k.IsEmpty() {
			row[keyColumn] = sheet.String(keys.Normalize(k.Cell()))
		}
		if opts.StampColumn != "" {
			row[opts.StampColumn] = stamp
		}
		out = append(out, row)
	}
	return out
}

// resolveSortColumn picks the write-back order column. The Date column wins
// when the sheet has one — log sheets keyed by composite timestamps are still
// ordered by calendar day — otherwise the key column orders the grid.
func resolveSortColumn(snap *sheet.Snapshot, configured, keyColumn string) string {
	if configured != "" {
		return configured
	}
	for _, c := range snap.Columns() {
		if c == "Date" {
			return c
		}
	}
	return keyColumn
}

// Engine runs store-backed reconciliation passes.
//
// Concurrency: the read-then-overwrite sequence is a read-modify-write race
// if two passes for the same sheet overlap, and the store offers no
// optimistic-concurrency token to detect it. The engine therefore serializes
// passes per sheet with a keyed mutex; passes for distinct sheets run
// concurrently since they touch disjoint store resources.
type Engine struct {
	Store  store.Store
	Logger Logger

	Options Options

	mu     sync.Mutex
	sheets map[string]*sync.Mutex
}

func (e *Engine) logf() func(format string, v ...any) {
	if e.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return e.Logger.Printf
}

func (e *Engine) sheetLock(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sheets == nil {
		e.sheets = make(map[string]*sync.Mutex)
	}
	m := e.sheets[name]
	if m == nil {
		m = &sync.Mutex{}
		e.sheets[name] = m
	}
	return m
}

// RunPass executes one full reconciliation pass for a sheet.
//
// Failure semantics follow from the store contract: the write is a single
// bulk call, so a failed pass leaves the sheet in its last successfully
// written state with no partial mutation visible. A pass abandoned between
// read and write has no effect at all. The caller retries by scheduling the
// next pass, never by re-sending the stale computed grid.
func (e *Engine) RunPass(ctx context.Context, sheetName string, batch []sheet.Row, keyColumn, sortColumn string, kind merge.Kind) (Stats, error) {
	if e.Store == nil {
		return Stats{}, fmt.Errorf("reconcile: Store is required")
	}
	if keyColumn == "" {
		return Stats{}, fmt.Errorf("reconcile: key column is required")
	}

	lock := e.sheetLock(sheetName)
	lock.Lock()
	defer lock.Unlock()

	logf := e.logf()

	readStart := time.Now()
	current, err := e.Store.ReadAll(ctx, sheetName)
	if err != nil {
		return Stats{}, fmt.Errorf("reconcile: read %s: %w", sheetName, err)
	}
	logf("stage=read sheet=%s rows=%d duration=%s", sheetName, len(current.Rows), durMS(readStart))

	mergeStart := time.Now()
	next, stats, err := Apply(current, batch, keyColumn, sortColumn, kind, e.Options)
	if err != nil {
		return Stats{}, err
	}
	logf("stage=merge sheet=%s strategy=%s batch=%d inserted=%d updated=%d replaced=%d skipped=%d duration=%s",
		sheetName, kind, len(batch), stats.Inserted, stats.Updated, stats.Replaced, stats.Skipped, durMS(mergeStart))

	writeStart := time.Now()
	if err := e.Store.OverwriteAll(ctx, sheetName, next); err != nil {
		return Stats{}, fmt.Errorf("reconcile: write %s: %w", sheetName, err)
	}
	logf("stage=write sheet=%s rows=%d duration=%s", sheetName, stats.Rows, durMS(writeStart))

	return stats, nil
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

// reportPass pushes pass-level metrics. Shared by the runner; kept here so
// the metric names stay next to the code that defines a pass.
func reportPass(sheetName, status string, stats Stats, elapsed time.Duration) {
	metrics.IncCounter(metrics.MetricPassTotal, 1, metrics.Labels{"sheet": sheetName, "status": status})
	metrics.ObserveHistogram(metrics.MetricPassDurationSeconds, elapsed.Seconds(), metrics.Labels{"sheet": sheetName})
	if status != "ok" {
		return
	}
	metrics.IncCounter(metrics.MetricRowsTotal, float64(stats.Inserted), metrics.Labels{"kind": "inserted"})
	metrics.IncCounter(metrics.MetricRowsTotal, float64(stats.Updated), metrics.Labels{"kind": "updated"})
	metrics.IncCounter(metrics.MetricRowsTotal, float64(stats.Replaced), metrics.Labels{"kind": "replaced"})
	metrics.IncCounter(metrics.MetricRowsTotal, float64(stats.Skipped), metrics.Labels{"kind": "skipped"})
}

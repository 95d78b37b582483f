// Package merge implements the strategies that combine a sheet snapshot with
// an incoming batch of partial records. Strategies are pure with respect to
// the outside world: they mutate only the snapshot they are given and report
// what they did through Stats.
package merge

import (
	"fmt"
	"sort"

	"fitsync/internal/sheet"
)

// Kind selects a merge strategy. The string forms are the external selector
// values accepted from producer bindings.
type Kind string

const (
	// ColumnMerge upserts by key, overwriting only the columns present in
	// each incoming row. For single-row-per-key aggregate sheets (one row per
	// day combining sleep, training load, and weight from different
	// producers).
	ColumnMerge Kind = "merge"

	// KeyRangeReplace deletes every existing row whose key appears in the
	// batch, then appends all incoming rows. For sheets where a producer's
	// fetch is the authoritative full state for the keys it covers (full
	// nutrition exports with several rows per day).
	KeyRangeReplace Kind = "replace-by-key"

	// AppendOnlyPatch sets individual cells by key, appending a new row when
	// the key is absent. For sparse column-at-a-time reports.
	AppendOnlyPatch Kind = "patch"
)

// ParseKind validates a strategy selector string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case ColumnMerge, KeyRangeReplace, AppendOnlyPatch:
		return Kind(s), nil
	}
	return "", fmt.Errorf("merge: unknown strategy %q", s)
}

// Stats reports what one strategy application did.
//
// Skipped counts malformed rows (missing the key column). One bad row never
// aborts the batch; it is skipped and counted here for the caller to log.
//
// Replaced counts existing rows removed by KeyRangeReplace before its batch
// is appended. It is distinct from Updated because replacement is not an
// in-place edit and the count can exceed the batch size (several old rows
// for one key).
type Stats struct {
	Inserted int
	Updated  int
	Replaced int
	Skipped  int
}

// Apply runs the selected strategy over the snapshot.
//
// The batch's key cells must already be normalized; the engine does that
// before calling Apply, and the snapshot normalized its own keys on load, so
// strategies compare keys with plain equality.
//
// Errors:
//   - Only an unknown Kind is an error. Data-level problems are handled
//     row-locally and surface as Stats.Skipped.
func Apply(kind Kind, snap *sheet.Snapshot, batch []sheet.Row) (Stats, error) {
	switch kind {
	case ColumnMerge:
		return columnMerge(snap, batch), nil
	case KeyRangeReplace:
		return keyRangeReplace(snap, batch), nil
	case AppendOnlyPatch:
		return appendOnlyPatch(snap, batch), nil
	}
	return Stats{}, fmt.Errorf("merge: unknown strategy %q", kind)
}

// columnMerge upserts each incoming row by key.
//
// Columns absent from an incoming row, including ones owned by other
// producers, are left untouched — that is the no-cross-producer-data-loss
// invariant this whole system exists to protect.
//
// Duplicate keys within the same batch resolve last-write-wins: later rows
// overwrite the cells of earlier ones in iteration order.
func columnMerge(snap *sheet.Snapshot, batch []sheet.Row) Stats {
	var st Stats
	keyCol := snap.KeyColumn()

	// Keys inserted during this batch, so a later duplicate updates the row
	// just inserted instead of appending a second one.
	for _, in := range batch {
		key := in.Get(keyCol)
		if key.IsEmpty() {
			st.Skipped++
			continue
		}

		positions := snap.Lookup(key.Cell())
		if len(positions) == 0 {
			snap.Append(in.Clone())
			st.Inserted++
			continue
		}

		// Aggregate sheets have one row per key; be tolerant of legacy
		// duplicates by updating the first occurrence.
		row := snap.Row(positions[0])
		for c, v := range in {
			row[c] = v
		}
		st.Updated++
	}
	return st
}

// keyRangeReplace drops every existing row for the keys the batch covers and
// appends the batch wholesale.
//
// This is the only sound way to reflect upstream deletions and edits when the
// source has no stable per-row identifier: replacing the whole key's rows
// avoids both duplicates and stale entries.
//
// Edge case: an empty batch (after skipping malformed rows) is a strict
// no-op. It must never be allowed to degenerate into deleting the table.
func keyRangeReplace(snap *sheet.Snapshot, batch []sheet.Row) Stats {
	var st Stats
	keyCol := snap.KeyColumn()

	valid := make([]sheet.Row, 0, len(batch))
	replaced := make(map[string]struct{})
	for _, in := range batch {
		key := in.Get(keyCol)
		if key.IsEmpty() {
			st.Skipped++
			continue
		}
		replaced[key.Cell()] = struct{}{}
		valid = append(valid, in)
	}
	if len(valid) == 0 {
		return st
	}

	st.Replaced = snap.DeleteKeys(replaced)
	for _, in := range valid {
		snap.Append(in.Clone())
		st.Inserted++
	}
	return st
}

// appendOnlyPatch applies each incoming record as a set of single-cell
// patches against the row identified by its key.
//
// Within one record, cells apply in lexicographic column order; across
// records, in batch order. For the same cell, later writes win, so repeated
// identical patches converge (the operation is idempotent in outcome).
func appendOnlyPatch(snap *sheet.Snapshot, batch []sheet.Row) Stats {
	var st Stats
	keyCol := snap.KeyColumn()

	for _, in := range batch {
		key := in.Get(keyCol)
		if key.IsEmpty() {
			st.Skipped++
			continue
		}

		positions := snap.Lookup(key.Cell())
		if len(positions) == 0 {
			snap.Append(in.Clone())
			st.Inserted++
			continue
		}

		row := snap.Row(positions[0])
		cols := make([]string, 0, len(in))
		for c := range in {
			if c == keyCol {
				continue
			}
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			row[c] = in[c]
		}
		st.Updated++
	}
	return st
}

package sheet

import (
	"sort"

	"fitsync/internal/keys"
)

// Snapshot is the full in-memory materialization of one sheet at the start of
// a reconciliation pass. It owns all mutation during the pass; the backing
// store is the sole durable owner between passes.
//
// Invariants maintained:
//   - every row's columns are a subset of Columns(); unseen columns must be
//     admitted through EnsureColumns before rows referencing them are added.
//   - the key index always maps normalized keys to current row positions.
type Snapshot struct {
	keyColumn string

	columns []string
	colSet  map[string]struct{}

	rows  []Row
	index map[string][]int
}

// Load reconstructs a Snapshot from a stored grid.
//
// Every row's key cell is normalized on load so historical data written under
// an older key format compares equal to freshly normalized incoming keys.
//
// Edge cases:
//   - An empty grid yields an empty snapshot whose column set contains just
//     the key column; the sheet is created implicitly on first write.
//   - Ragged legacy rows are tolerated: short rows read as Empty in missing
//     positions, excess cells beyond the header are dropped.
func Load(g Grid, keyColumn string) *Snapshot {
	s := &Snapshot{
		keyColumn: keyColumn,
		colSet:    make(map[string]struct{}),
		index:     make(map[string][]int),
	}

	for _, c := range g.Columns {
		s.admitColumn(c)
	}
	if _, ok := s.colSet[keyColumn]; !ok {
		s.admitColumn(keyColumn)
	}

	for _, raw := range g.Rows {
		row := make(Row, len(g.Columns))
		for i, c := range g.Columns {
			if i >= len(raw) {
				break
			}
			v := FromCell(raw[i])
			if v.IsEmpty() {
				continue
			}
			row[c] = v
		}
		if k := row.Get(keyColumn); !k.IsEmpty() {
			row[keyColumn] = String(keys.Normalize(k.Cell()))
		}
		s.rows = append(s.rows, row)
	}

	s.rebuildIndex()
	return s
}

func (s *Snapshot) admitColumn(c string) {
	if _, ok := s.colSet[c]; ok {
		return
	}
	s.colSet[c] = struct{}{}
	s.columns = append(s.columns, c)
}

// KeyColumn returns the designated key column for this snapshot.
func (s *Snapshot) KeyColumn() string { return s.keyColumn }

// Columns returns the ordered column set. Callers must not mutate it.
func (s *Snapshot) Columns() []string { return s.columns }

// Len returns the number of rows.
func (s *Snapshot) Len() int { return len(s.rows) }

// Row returns the row at position i. The returned map is live: strategies
// mutate it in place during a pass.
func (s *Snapshot) Row(i int) Row { return s.rows[i] }

// Lookup returns the positions of all rows whose normalized key equals key,
// in current row order. ColumnMerge sheets have at most one position per key;
// log-style sheets may have many.
func (s *Snapshot) Lookup(key string) []int { return s.index[key] }

// EnsureColumns extends the column set with every column that appears in the
// batch but not yet in the sheet. Existing columns keep their positions;
// unseen columns are appended at the end in lexicographic order, which is the
// only deterministic order available for unordered records. Once appended a
// column keeps its position across passes, guaranteeing stable column
// ordering for the positional grid.
func (s *Snapshot) EnsureColumns(batch []Row) {
	var unseen []string
	seen := make(map[string]struct{})
	for _, r := range batch {
		for c := range r {
			if _, ok := s.colSet[c]; ok {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			unseen = append(unseen, c)
		}
	}
	sort.Strings(unseen)
	for _, c := range unseen {
		s.admitColumn(c)
	}
}

// Append adds a row at the end and indexes its key. The row's key cell is
// assumed normalized; Append re-normalizes defensively since Normalize is
// idempotent and cheap.
func (s *Snapshot) Append(r Row) {
	if k := r.Get(s.keyColumn); !k.IsEmpty() {
		nk := keys.Normalize(k.Cell())
		r[s.keyColumn] = String(nk)
		s.index[nk] = append(s.index[nk], len(s.rows))
	}
	s.rows = append(s.rows, r)
}

// DeleteKeys removes every row whose normalized key is in the set and returns
// the number of rows removed. Remaining rows keep their relative order.
func (s *Snapshot) DeleteKeys(set map[string]struct{}) int {
	if len(set) == 0 {
		return 0
	}
	kept := s.rows[:0]
	removed := 0
	for _, r := range s.rows {
		k := r.Get(s.keyColumn).Cell()
		if _, drop := set[k]; drop {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	s.rebuildIndex()
	return removed
}

// SortByDesc stable-sorts rows by the given column, descending.
//
// Comparison rules:
//   - Date-parseable cells compare by date; newest first is the externally
//     observed convention for every sheet.
//   - Otherwise numeric cells compare numerically, then strings
//     lexicographically.
//   - Cells that parse as neither (including empties) order last.
//   - Ties keep their original relative order, so repeated reconciliations of
//     the same inputs produce byte-identical grids.
func (s *Snapshot) SortByDesc(col string) {
	type sortKey struct {
		hasDate bool
		date    int64
		hasNum  bool
		num     float64
		str     string
		empty   bool
	}

	sk := make([]sortKey, len(s.rows))
	for i, r := range s.rows {
		v := r.Get(col)
		k := sortKey{str: v.Cell()}
		if v.IsEmpty() {
			k.empty = true
		} else if t, ok := keys.ParseDate(v.Cell()); ok {
			k.hasDate = true
			k.date = t.Unix()
		} else if n, ok := v.Number(); ok {
			k.hasNum = true
			k.num = n
		}
		sk[i] = k
	}

	// Rank classes: dates, then numbers, then strings, then unparseable/empty.
	rank := func(k sortKey) int {
		switch {
		case k.hasDate:
			return 0
		case k.hasNum:
			return 1
		case !k.empty:
			return 2
		default:
			return 3
		}
	}

	idx := make([]int, len(s.rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := sk[idx[a]], sk[idx[b]]
		ra, rb := rank(ka), rank(kb)
		if ra != rb {
			return ra < rb
		}
		switch ra {
		case 0:
			return ka.date > kb.date
		case 1:
			return ka.num > kb.num
		case 2:
			return ka.str > kb.str
		default:
			return false
		}
	})

	rows := make([]Row, len(s.rows))
	for i, j := range idx {
		rows[i] = s.rows[j]
	}
	s.rows = rows
	s.rebuildIndex()
}

// Grid materializes the snapshot for a single bulk overwrite. Missing cells
// render as explicit empty strings; the result is rectangular.
func (s *Snapshot) Grid() Grid {
	g := Grid{
		Columns: append([]string(nil), s.columns...),
		Rows:    make([][]string, 0, len(s.rows)),
	}
	for _, r := range s.rows {
		out := make([]string, len(s.columns))
		for i, c := range s.columns {
			out[i] = r.Get(c).Cell()
		}
		g.Rows = append(g.Rows, out)
	}
	return g
}

func (s *Snapshot) rebuildIndex() {
	s.index = make(map[string][]int, len(s.rows))
	for i, r := range s.rows {
		k := r.Get(s.keyColumn)
		if k.IsEmpty() {
			continue
		}
		s.index[k.Cell()] = append(s.index[k.Cell()], i)
	}
}

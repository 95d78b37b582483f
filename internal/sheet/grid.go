package sheet

// Grid is the wire shape exchanged with a backing store: an ordered header
// row plus data rows of cell text. Column identity is positional; the stores
// have no notion of named columns beyond position in the written grid.
//
// A Grid is always rectangular on write-back (every row has exactly
// len(Columns) cells), but Load tolerates ragged input from legacy data:
// short rows read as empty in the missing positions, long rows drop the
// excess.
type Grid struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the grid has no header and no rows, i.e. the sheet
// has never been written.
func (g Grid) Empty() bool { return len(g.Columns) == 0 && len(g.Rows) == 0 }

// Clone returns a deep copy. Stores hand out grids that callers mutate, so
// fakes and caching stores use this to stay isolated.
func (g Grid) Clone() Grid {
	out := Grid{
		Columns: append([]string(nil), g.Columns...),
		Rows:    make([][]string, 0, len(g.Rows)),
	}
	for _, r := range g.Rows {
		out.Rows = append(out.Rows, append([]string(nil), r...))
	}
	return out
}

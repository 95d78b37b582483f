// Package sheet holds the in-memory model of one reconciled table: scalar
// cell values, schemaless rows, the raw grid exchanged with a backing store,
// and the Snapshot used during a reconciliation pass.
package sheet

import (
	"strconv"
	"strings"
)

// Kind discriminates the Value sum type.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
)

// Value is one scalar cell: a string, a number, or empty.
//
// The backing stores only understand text grids, so Value exists to make the
// string/number/absent distinction explicit in memory instead of relying on
// ad-hoc any-typed cells. An absent cell and an explicit empty cell render
// identically on write-back; stores cannot represent the difference.
//
// Numeric values keep their textual form alongside the parsed float: a cell
// that no strategy touches must round-trip through a pass byte-identical
// ("1234567" must never come back as "1.234567e+06"), and key cells must
// reach the normalizer as written.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Empty is the zero Value. Absent cells read as Empty.
var Empty = Value{}

func String(s string) Value {
	if s == "" {
		return Empty
	}
	return Value{kind: KindString, str: s}
}

// Number constructs a numeric value. The textual form uses the 'f' format,
// which never switches to scientific notation, so Number(1234567) renders as
// "1234567".
func Number(f float64) Value {
	return Value{kind: KindNumber, str: strconv.FormatFloat(f, 'f', -1, 64), num: f}
}

// FromCell parses a stored cell back into a Value. Numeric-looking text
// becomes a number for sorting and comparison, but Cell() always re-emits
// the original text.
func FromCell(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Empty
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{kind: KindNumber, str: s, num: f}
	}
	return String(s)
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Cell renders the value as stored-grid text. Empty renders as "". Numbers
// render as their original (or 'f'-formatted) text, never scientific
// notation.
func (v Value) Cell() string {
	return v.str
}

// Number returns the numeric value and whether the Value is numeric.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Equal compares two values by kind and content.
func (v Value) Equal(o Value) bool { return v == o }

// Row is a schemaless record: column name to cell value. A row need not have
// a value for every column in the sheet; reads of missing columns yield Empty.
type Row map[string]Value

// Get returns the cell for col, Empty when absent.
func (r Row) Get(col string) Value {
	if r == nil {
		return Empty
	}
	return r[col]
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

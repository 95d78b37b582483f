package merge

import (
	"reflect"
	"testing"

	"fitsync/internal/sheet"
)

func snapFromGrid(t *testing.T, g sheet.Grid, keyColumn string, batch []sheet.Row) *sheet.Snapshot {
	t.Helper()
	s := sheet.Load(g, keyColumn)
	s.EnsureColumns(batch)
	return s
}

func TestParseKind(t *testing.T) {
	for _, ok := range []string{"merge", "replace-by-key", "patch"} {
		if _, err := ParseKind(ok); err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", ok, err)
		}
	}
	if _, err := ParseKind("upsert"); err == nil {
		t.Error("ParseKind accepted unknown strategy")
	}
}

func TestApplyUnknownKind(t *testing.T) {
	s := sheet.Load(sheet.Grid{}, "Date")
	if _, err := Apply(Kind("bogus"), s, nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestColumnMergePreservesOtherProducersColumns(t *testing.T) {
	g := sheet.Grid{
		Columns: []string{"Date", "Sleep_Hours", "Weight"},
		Rows: [][]string{
			{"2024-03-05", "7.5", "82.1"},
		},
	}
	batch := []sheet.Row{
		{"Date": sheet.String("2024-03-05"), "Training_Load": sheet.Number(55)},
	}
	s := snapFromGrid(t, g, "Date", batch)

	st, err := Apply(ColumnMerge, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Updated: 1}) {
		t.Fatalf("stats = %+v", st)
	}

	row := s.Row(0)
	if got := row.Get("Sleep_Hours").Cell(); got != "7.5" {
		t.Fatalf("Sleep_Hours overwritten: %q", got)
	}
	if got := row.Get("Weight").Cell(); got != "82.1" {
		t.Fatalf("Weight overwritten: %q", got)
	}
	if got := row.Get("Training_Load").Cell(); got != "55" {
		t.Fatalf("Training_Load = %q, want 55", got)
	}
}

func TestColumnMergeInsertsUnknownKeys(t *testing.T) {
	batch := []sheet.Row{
		{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(9000)},
		{"Date": sheet.String("2024-03-06"), "Steps": sheet.Number(7500)},
	}
	s := snapFromGrid(t, sheet.Grid{}, "Date", batch)

	st, err := Apply(ColumnMerge, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 2}) {
		t.Fatalf("stats = %+v", st)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestColumnMergeLastWriteWinsWithinBatch(t *testing.T) {
	batch := []sheet.Row{
		{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(1000)},
		{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(2000)},
	}
	s := snapFromGrid(t, sheet.Grid{}, "Date", batch)

	st, err := Apply(ColumnMerge, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 1, Updated: 1}) {
		t.Fatalf("stats = %+v", st)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if n, _ := s.Row(0).Get("Steps").Number(); n != 2000 {
		t.Fatalf("Steps = %v, want 2000", n)
	}
}

func TestColumnMergeSkipsMalformedRows(t *testing.T) {
	batch := []sheet.Row{
		{"Steps": sheet.Number(9000)}, // no key
		{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(7500)},
	}
	s := snapFromGrid(t, sheet.Grid{}, "Date", batch)

	st, err := Apply(ColumnMerge, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 1, Skipped: 1}) {
		t.Fatalf("stats = %+v", st)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestColumnMergeIdempotent(t *testing.T) {
	batch := []sheet.Row{
		{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(9000)},
	}

	s := snapFromGrid(t, sheet.Grid{}, "Date", batch)
	if _, err := Apply(ColumnMerge, s, batch); err != nil {
		t.Fatal(err)
	}
	first := s.Grid()

	s2 := sheet.Load(first, "Date")
	s2.EnsureColumns(batch)
	if _, err := Apply(ColumnMerge, s2, batch); err != nil {
		t.Fatal(err)
	}
	second := s2.Grid()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeat application changed grid:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestKeyRangeReplaceReplacesCoveredKeysOnly(t *testing.T) {
	g := sheet.Grid{
		Columns: []string{"Timestamp", "Date", "Name"},
		Rows: [][]string{
			{"2024-03-05_Oatmeal_Breakfast_1", "2024-03-05", "Oatmeal"},
			{"2024-03-05_Coffee_Breakfast_2", "2024-03-05", "Coffee"},
			{"2024-03-04_Toast_Breakfast_1", "2024-03-04", "Toast"},
		},
	}
	batch := []sheet.Row{
		{"Timestamp": sheet.String("2024-03-05_Oatmeal_Breakfast_1"), "Date": sheet.String("2024-03-05"), "Name": sheet.String("Oatmeal XL")},
	}
	s := snapFromGrid(t, g, "Timestamp", batch)

	st, err := Apply(KeyRangeReplace, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 1, Replaced: 1}) {
		t.Fatalf("stats = %+v", st)
	}

	// Coffee (same day, different key) and Toast (other day) survive; the
	// replaced key holds exactly the incoming row.
	names := make(map[string]bool)
	for i := 0; i < s.Len(); i++ {
		names[s.Row(i).Get("Name").Cell()] = true
	}
	if !names["Coffee"] || !names["Toast"] || !names["Oatmeal XL"] || names["Oatmeal"] {
		t.Fatalf("unexpected rows: %v", names)
	}
}

func TestKeyRangeReplaceEmptyBatchIsNoOp(t *testing.T) {
	g := sheet.Grid{
		Columns: []string{"Timestamp", "Name"},
		Rows: [][]string{
			{"2024-03-05_Oatmeal_Breakfast_1", "Oatmeal"},
		},
	}

	for _, batch := range [][]sheet.Row{
		nil,
		{{"Name": sheet.String("keyless")}}, // all rows malformed
	} {
		s := snapFromGrid(t, g, "Timestamp", batch)
		st, err := Apply(KeyRangeReplace, s, batch)
		if err != nil {
			t.Fatal(err)
		}
		if st.Inserted != 0 || st.Replaced != 0 {
			t.Fatalf("stats = %+v, want no mutation", st)
		}
		if s.Len() != 1 {
			t.Fatalf("Len = %d, existing data must survive an empty batch", s.Len())
		}
	}
}

func TestKeyRangeReplaceKeepsBatchDuplicates(t *testing.T) {
	batch := []sheet.Row{
		{"Timestamp": sheet.String("2024-03-05_Coffee_Breakfast_1"), "Name": sheet.String("Coffee")},
		{"Timestamp": sheet.String("2024-03-05_Coffee_Breakfast_1"), "Name": sheet.String("Coffee")},
	}
	s := snapFromGrid(t, sheet.Grid{}, "Timestamp", batch)

	st, err := Apply(KeyRangeReplace, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	// Same key twice in one fetch means two real rows (two coffees).
	if st != (Stats{Inserted: 2}) {
		t.Fatalf("stats = %+v", st)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestKeyRangeReplaceCountsAllReplacedRows(t *testing.T) {
	// Three old rows for one key, one incoming row: Replaced reports the
	// rows removed, which can exceed the batch size.
	g := sheet.Grid{
		Columns: []string{"Timestamp", "Name"},
		Rows: [][]string{
			{"2024-03-05_Coffee_Breakfast_1", "Coffee"},
			{"2024-03-05_Coffee_Breakfast_1", "Coffee"},
			{"2024-03-05_Coffee_Breakfast_1", "Coffee"},
		},
	}
	batch := []sheet.Row{
		{"Timestamp": sheet.String("2024-03-05_Coffee_Breakfast_1"), "Name": sheet.String("Coffee")},
	}
	s := snapFromGrid(t, g, "Timestamp", batch)

	st, err := Apply(KeyRangeReplace, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 1, Replaced: 3}) {
		t.Fatalf("stats = %+v, want Replaced: 3", st)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestAppendOnlyPatchSetsCellsAndInsertsMissingKeys(t *testing.T) {
	g := sheet.Grid{
		Columns: []string{"Date", "Weight", "Notes"},
		Rows: [][]string{
			{"2024-03-05", "82.1", "rest day"},
		},
	}
	batch := []sheet.Row{
		{"Date": sheet.String("2024-03-05"), "Weight": sheet.Number(81.9)},
		{"Date": sheet.String("2024-03-06"), "Weight": sheet.Number(81.7)},
	}
	s := snapFromGrid(t, g, "Date", batch)

	st, err := Apply(AppendOnlyPatch, s, batch)
	if err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Inserted: 1, Updated: 1}) {
		t.Fatalf("stats = %+v", st)
	}
	if got := s.Row(0).Get("Notes").Cell(); got != "rest day" {
		t.Fatalf("patch clobbered unrelated cell: %q", got)
	}
	if n, _ := s.Row(0).Get("Weight").Number(); n != 81.9 {
		t.Fatalf("Weight = %v, want 81.9", n)
	}
}

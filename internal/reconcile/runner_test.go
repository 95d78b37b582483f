package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fitsync/internal/merge"
	"fitsync/internal/producer"
	"fitsync/internal/sheet"
)

type fakeProducer struct {
	name  string
	batch []sheet.Row
	err   error
	calls int
}

func (p *fakeProducer) Name() string { return p.name }

func (p *fakeProducer) FetchBatch(ctx context.Context) ([]sheet.Row, error) {
	p.calls++
	return p.batch, p.err
}

func testRunner(fs *fakeStore) *Runner {
	return &Runner{
		Engine:    &Engine{Store: fs},
		NewPassID: func() string { return "pass-1" },
	}
}

func TestRunOnceReconcilesEveryBinding(t *testing.T) {
	fs := newFakeStore()
	r := testRunner(fs)

	bindings := []producer.Binding{
		{
			Producer:  &fakeProducer{name: "steps", batch: []sheet.Row{{"Date": sheet.String("2024-03-05"), "Steps": sheet.Number(9000)}}},
			Sheet:     "Daily",
			KeyColumn: "Date",
			Strategy:  merge.ColumnMerge,
		},
		{
			Producer:  &fakeProducer{name: "meals", batch: []sheet.Row{{"Timestamp": sheet.String("2024-03-05_Oatmeal_Breakfast_1")}}},
			Sheet:     "Meals",
			KeyColumn: "Timestamp",
			Strategy:  merge.KeyRangeReplace,
		},
	}

	if err := r.RunOnce(context.Background(), bindings); err != nil {
		t.Fatal(err)
	}
	if got := len(fs.grid("Daily").Rows); got != 1 {
		t.Fatalf("Daily rows = %d", got)
	}
	if got := len(fs.grid("Meals").Rows); got != 1 {
		t.Fatalf("Meals rows = %d", got)
	}
}

func TestRunOnceSameSheetBindingsApplyInOrder(t *testing.T) {
	fs := newFakeStore()
	r := testRunner(fs)

	// Two producers write the same cell of the same sheet; the later binding
	// must win.
	bindings := []producer.Binding{
		{
			Producer:  &fakeProducer{name: "first", batch: []sheet.Row{{"Date": sheet.String("2024-03-05"), "Weight": sheet.Number(82)}}},
			Sheet:     "Daily",
			KeyColumn: "Date",
			Strategy:  merge.ColumnMerge,
		},
		{
			Producer:  &fakeProducer{name: "second", batch: []sheet.Row{{"Date": sheet.String("2024-03-05"), "Weight": sheet.Number(81)}}},
			Sheet:     "Daily",
			KeyColumn: "Date",
			Strategy:  merge.ColumnMerge,
		},
	}

	if err := r.RunOnce(context.Background(), bindings); err != nil {
		t.Fatal(err)
	}
	g := fs.grid("Daily")
	if len(g.Rows) != 1 || g.Rows[0][1] != "81" {
		t.Fatalf("grid = %+v, want single row with Weight 81", g)
	}
}

func TestRunOnceEmptyBatchSkipsPass(t *testing.T) {
	fs := newFakeStore()
	r := testRunner(fs)

	p := &fakeProducer{name: "empty"}
	err := r.RunOnce(context.Background(), []producer.Binding{
		{Producer: p, Sheet: "Daily", KeyColumn: "Date", Strategy: merge.ColumnMerge},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("calls = %d", p.calls)
	}
	if fs.reads != 0 || fs.writes != 0 {
		t.Fatalf("store touched for empty batch: reads=%d writes=%d", fs.reads, fs.writes)
	}
}

func TestRunOnceCollectsFailuresWithoutStoppingOthers(t *testing.T) {
	fs := newFakeStore()
	r := testRunner(fs)

	bindings := []producer.Binding{
		{
			Producer:  &fakeProducer{name: "broken", err: errors.New("download missing")},
			Sheet:     "Broken",
			KeyColumn: "Date",
			Strategy:  merge.ColumnMerge,
		},
		{
			Producer:  &fakeProducer{name: "steps", batch: []sheet.Row{{"Date": sheet.String("2024-03-05")}}},
			Sheet:     "Daily",
			KeyColumn: "Date",
			Strategy:  merge.ColumnMerge,
		},
	}

	err := r.RunOnce(context.Background(), bindings)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "download missing") {
		t.Fatalf("error = %v", err)
	}
	if got := len(fs.grid("Daily").Rows); got != 1 {
		t.Fatalf("healthy binding did not run: rows=%d", got)
	}
}

func TestRunEveryRejectsNonPositiveInterval(t *testing.T) {
	r := testRunner(newFakeStore())
	if err := r.RunEvery(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunEveryStopsOnContextCancel(t *testing.T) {
	fs := newFakeStore()
	r := testRunner(fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunEvery(ctx, nil, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fitsync/internal/sheet"
	"fitsync/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "fitsync.db")
	s, err := New(context.Background(), store.Config{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestReadAllUnwrittenSheetIsEmpty(t *testing.T) {
	s := newTestStore(t)

	g, err := s.ReadAll(context.Background(), "Daily")
	require.NoError(t, err)
	require.True(t, g.Empty())
}

func TestOverwriteThenReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sheet.Grid{
		Columns: []string{"Date", "Steps", "Notes"},
		Rows: [][]string{
			{"2024-03-06", "7500", ""},
			{"2024-03-05", "9000", `notes with "quotes", commas`},
		},
	}
	require.NoError(t, s.OverwriteAll(ctx, "Daily", in))

	out, err := s.ReadAll(ctx, "Daily")
	require.NoError(t, err)
	require.Equal(t, in.Columns, out.Columns)
	require.Equal(t, in.Rows, out.Rows)
}

func TestOverwriteReplacesPreviousContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.OverwriteAll(ctx, "Daily", sheet.Grid{
		Columns: []string{"Date"},
		Rows:    [][]string{{"2024-03-05"}, {"2024-03-04"}, {"2024-03-03"}},
	}))
	require.NoError(t, s.OverwriteAll(ctx, "Daily", sheet.Grid{
		Columns: []string{"Date", "Steps"},
		Rows:    [][]string{{"2024-03-06", "7500"}},
	}))

	out, err := s.ReadAll(ctx, "Daily")
	require.NoError(t, err)
	require.Equal(t, []string{"Date", "Steps"}, out.Columns)
	require.Len(t, out.Rows, 1)
}

func TestSheetsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.OverwriteAll(ctx, "Daily", sheet.Grid{
		Columns: []string{"Date"},
		Rows:    [][]string{{"2024-03-05"}},
	}))
	require.NoError(t, s.OverwriteAll(ctx, "Meals", sheet.Grid{
		Columns: []string{"Timestamp"},
		Rows:    [][]string{{"2024-03-05_Oatmeal_Breakfast_1"}, {"2024-03-05_Coffee_Breakfast_2"}},
	}))

	daily, err := s.ReadAll(ctx, "Daily")
	require.NoError(t, err)
	require.Len(t, daily.Rows, 1)

	meals, err := s.ReadAll(ctx, "Meals")
	require.NoError(t, err)
	require.Len(t, meals.Rows, 2)
}

func TestFactoryRegistration(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "fitsync.db")
	s, err := store.New(context.Background(), store.Config{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer s.Close()
}

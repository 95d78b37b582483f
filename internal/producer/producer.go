// Package producer defines the adapter contract between external data
// sources and the reconciliation engine.
//
// A producer is a short-lived, explicitly constructed object with exactly one
// capability: fetch the current batch of records. There are no long-lived
// authenticated sessions and no global singletons; whatever state a fetch
// needs (file paths, decoders) is held by the adapter instance the caller
// built.
package producer

import (
	"context"

	"fitsync/internal/merge"
	"fitsync/internal/sheet"
)

// Producer fetches one batch of partial records for a single sheet.
//
// Errors:
//   - FetchBatch returns an error only for fatal fetch failures (file
//     missing, unreadable export). Malformed individual records are the
//     engine's concern and are skipped there, not here.
type Producer interface {
	Name() string
	FetchBatch(ctx context.Context) ([]sheet.Row, error)
}

// Binding ties a producer to its destination sheet and merge policy. The
// runner executes one reconciliation pass per binding.
type Binding struct {
	Producer  Producer
	Sheet     string
	KeyColumn string

	// SortColumn orders the written grid (descending). Empty selects the
	// default: "Date" when the sheet has such a column, else KeyColumn.
	SortColumn string

	Strategy merge.Kind
}

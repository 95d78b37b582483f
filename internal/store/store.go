// Package store defines the backing-store contract for reconciled sheets and
// the registry through which backend implementations plug in.
//
// The contract is deliberately blunt: read everything, overwrite everything.
// No backend offers a row-level primitive. That constraint is load-bearing —
// it is why the engine merges full snapshots instead of patching rows, and
// why concurrent passes over one sheet are unsafe and must be serialized by
// the caller.
package store

import (
	"context"
	"fmt"
	"sync"

	"fitsync/internal/sheet"
)

// Config is the minimal configuration needed to construct a store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific (a directory path for csv, a connection string for the
//     SQL backends).
type Config struct {
	Kind string
	DSN  string
}

// Store is the backend-agnostic persistence interface for whole sheets.
//
// IMPORTANT: implementations must make OverwriteAll observable as a single
// bulk replacement — either the previous content or the new content, never a
// partial mix. The SQL backends use one transaction; the csv backend writes a
// temp file and renames.
type Store interface {
	// ReadAll returns the full current contents of the named sheet.
	//
	// Edge cases:
	//   - A sheet that has never been written returns an empty Grid and nil
	//     error; sheets are created implicitly on first overwrite.
	ReadAll(ctx context.Context, sheetName string) (sheet.Grid, error)

	// OverwriteAll replaces the entire sheet with the given grid, header row
	// included. The previous content is discarded.
	OverwriteAll(ctx context.Context, sheetName string, g sheet.Grid) error

	// Close releases backend resources. Treat as "call once".
	Close()
}

// ---- factories (one registered backend per kind) ----

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a store backend under a kind (e.g. "sqlite", "csv").
//
// When to use:
//   - Call Register from an init() function in a backend package; the kind
//     string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fitsync/internal/producer"
)

// Runner executes reconciliation passes for a set of producer bindings.
//
// Bindings for distinct sheets run concurrently; bindings that target the
// same sheet run in their configured order, one pass completing before the
// next begins (the engine's per-sheet lock would serialize them anyway, but
// keeping configured order makes producer precedence deterministic).
type Runner struct {
	Engine *Engine
	Logger Logger

	// NewPassID is a seam for deterministic tests. Nil means uuid.NewString.
	NewPassID func() string
}

func (r *Runner) passID() string {
	if r.NewPassID != nil {
		return r.NewPassID()
	}
	return uuid.NewString()
}

// RunOnce fetches and reconciles every binding once.
//
// Failure semantics: one producer failing does not stop the others — each
// sheet is independently self-healing across passes — but every failure is
// reported, joined into the returned error.
func (r *Runner) RunOnce(ctx context.Context, bindings []producer.Binding) error {
	if r.Engine == nil {
		return fmt.Errorf("reconcile: Engine is required")
	}

	bySheet := make(map[string][]producer.Binding)
	var order []string
	for _, b := range bindings {
		if _, seen := bySheet[b.Sheet]; !seen {
			order = append(order, b.Sheet)
		}
		bySheet[b.Sheet] = append(bySheet[b.Sheet], b)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sheetName := range order {
		group := bySheet[sheetName]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range group {
				if err := r.runBinding(ctx, b); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (r *Runner) runBinding(ctx context.Context, b producer.Binding) error {
	logf := r.logf()
	id := r.passID()
	start := time.Now()

	batch, err := b.Producer.FetchBatch(ctx)
	if err != nil {
		reportPass(b.Sheet, "fetch_error", Stats{}, time.Since(start))
		return fmt.Errorf("pass %s: fetch %s for %s: %w", id, b.Producer.Name(), b.Sheet, err)
	}
	if len(batch) == 0 {
		logf("pass=%s producer=%s sheet=%s status=empty", id, b.Producer.Name(), b.Sheet)
		return nil
	}

	stats, err := r.Engine.RunPass(ctx, b.Sheet, batch, b.KeyColumn, b.SortColumn, b.Strategy)
	elapsed := time.Since(start)
	if err != nil {
		reportPass(b.Sheet, "error", Stats{}, elapsed)
		return fmt.Errorf("pass %s: reconcile %s: %w", id, b.Sheet, err)
	}

	reportPass(b.Sheet, "ok", stats, elapsed)
	logf("pass=%s producer=%s sheet=%s status=ok inserted=%d updated=%d replaced=%d skipped=%d rows=%d duration=%s",
		id, b.Producer.Name(), b.Sheet, stats.Inserted, stats.Updated, stats.Replaced, stats.Skipped, stats.Rows,
		elapsed.Truncate(time.Millisecond))
	return nil
}

// RunEvery runs all bindings immediately and then on every interval tick
// until the context is canceled. Errors from a cycle are logged, not
// returned: producers keep re-delivering, so the next cycle reconciles again.
func (r *Runner) RunEvery(ctx context.Context, bindings []producer.Binding, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reconcile: interval must be positive")
	}

	logf := r.logf()

	if err := r.RunOnce(ctx, bindings); err != nil {
		logf("cycle status=error err=%v", err)
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := r.RunOnce(ctx, bindings); err != nil {
				logf("cycle status=error err=%v", err)
			}
		}
	}
}

func (r *Runner) logf() func(format string, v ...any) {
	if r.Logger != nil {
		return r.Logger.Printf
	}
	if r.Engine != nil {
		return r.Engine.logf()
	}
	return log.New(discardWriter{}, "", 0).Printf
}

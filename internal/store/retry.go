package store

import (
	"context"
	"time"

	"fitsync/internal/sheet"
)

// Policy bounds the retry behavior of a retrying store wrapper.
type Policy struct {
	// Attempts is the total number of tries per call. <=0 defaults to 3.
	Attempts int
	// Backoff is the initial delay between tries, doubled after each failed
	// try. <=0 defaults to 2s.
	Backoff time.Duration

	// sleep is an unexported test seam. Production uses a ctx-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a store so transient read/write failures are retried with
// exponential backoff.
//
// This lives at the adapter boundary on purpose: the reconciliation engine
// performs no retries of its own, and a timed-out OverwriteAll must not be
// blindly retried at the engine level without re-reading — but retrying the
// single I/O call before the engine ever sees the failure is safe, because
// OverwriteAll is a bulk replacement and repeating it with the same grid is
// idempotent.
func WithRetry(s Store, p Policy) Store {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 2 * time.Second
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	return &retryStore{inner: s, policy: p}
}

type retryStore struct {
	inner  Store
	policy Policy
}

func (r *retryStore) ReadAll(ctx context.Context, sheetName string) (sheet.Grid, error) {
	var g sheet.Grid
	err := r.retry(ctx, func() error {
		var err error
		g, err = r.inner.ReadAll(ctx, sheetName)
		return err
	})
	return g, err
}

func (r *retryStore) OverwriteAll(ctx context.Context, sheetName string, g sheet.Grid) error {
	return r.retry(ctx, func() error {
		return r.inner.OverwriteAll(ctx, sheetName, g)
	})
}

func (r *retryStore) Close() { r.inner.Close() }

func (r *retryStore) retry(ctx context.Context, op func() error) error {
	delay := r.policy.Backoff
	var last error
	for attempt := 0; attempt < r.policy.Attempts; attempt++ {
		if attempt > 0 {
			if err := r.policy.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		if last = op(); last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return last
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

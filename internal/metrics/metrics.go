// Package metrics defines the minimal metrics facade used by the
// reconciliation engine and runner. Core code depends only on Backend; actual
// submission (Datadog, or nothing) is chosen at startup by the binary.
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"sheet": "Daily_Summary", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use: passes for independent
// sheets run concurrently and all report through the same backend.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the reconciliation runner.
const (
	MetricPassTotal           = "sync_pass_total"
	MetricRowsTotal           = "sync_rows_total"
	MetricPassDurationSeconds = "sync_pass_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once at startup, before
// any passes run.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter increments a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records a sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces submission of buffered metrics.
func Flush() error { return current().Flush() }

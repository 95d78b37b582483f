// Package config defines the application configuration and its validation.
// Loading (file discovery, env expansion) is the binary's concern; this
// package only knows the shape and what makes it coherent.
package config

import (
	"fmt"

	"fitsync/internal/merge"
)

// Config is the root configuration for a fitsync run.
type Config struct {
	// Job names the run for metrics tagging and logs.
	Job string `mapstructure:"job" json:"job"`

	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`

	// IntervalMinutes enables the scheduling loop: 0 runs every binding once
	// and exits, >0 re-syncs on that cadence.
	IntervalMinutes int `mapstructure:"interval_minutes" json:"interval_minutes"`

	// StampColumn, when set, records fetch time on every merged row
	// (conventionally "Last_Fetched_At").
	StampColumn string `mapstructure:"stamp_column" json:"stamp_column"`

	Producers []ProducerConfig `mapstructure:"producers" json:"producers"`
}

type StorageConfig struct {
	// Kind selects a registered store backend: sqlite, postgres, mssql, csv.
	Kind string `mapstructure:"kind" json:"kind"`
	// DSN is backend-specific; environment references ($VAR) are expanded by
	// the binary before the store is constructed.
	DSN string `mapstructure:"dsn" json:"dsn"`

	// Retry bounds for the store adapter. Zero values take the defaults.
	RetryAttempts       int `mapstructure:"retry_attempts" json:"retry_attempts"`
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds" json:"retry_backoff_seconds"`
}

type MetricsConfig struct {
	// Backend: "datadog" or "none"/empty.
	Backend string `mapstructure:"backend" json:"backend"`
	// Tags are extra comma-separated metric tags ("env:prod,service:fitsync").
	Tags string `mapstructure:"tags" json:"tags"`
}

// ProducerConfig declares one producer binding.
type ProducerConfig struct {
	Name string `mapstructure:"name" json:"name"`

	// Kind selects the adapter: "csv-export" or "html-export".
	Kind string `mapstructure:"kind" json:"kind"`

	// Path of the export file the adapter reads.
	Path string `mapstructure:"path" json:"path"`

	// Encoding is csv-export only: legacy charset of old export files.
	Encoding string `mapstructure:"encoding" json:"encoding"`

	// TableSelector is html-export only: which table to extract.
	TableSelector string `mapstructure:"table_selector" json:"table_selector"`

	// Sheet is the destination sheet name.
	Sheet string `mapstructure:"sheet" json:"sheet"`

	// KeyColumn identifies which existing row an incoming record targets.
	KeyColumn string `mapstructure:"key_column" json:"key_column"`

	// SortColumn overrides the write-back ordering column.
	SortColumn string `mapstructure:"sort_column" json:"sort_column"`

	// Strategy: merge | replace-by-key | patch.
	Strategy string `mapstructure:"strategy" json:"strategy"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Validate checks the configuration and returns every issue found. The
// caller decides whether warnings are acceptable; any SeverityError issue
// makes the config unusable.
func Validate(c Config) []Issue {
	var issues []Issue

	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if c.Job == "" {
		warnf("job", "empty job name; metrics will be tagged job:fitsync")
	}
	if c.Storage.Kind == "" {
		errf("storage.kind", "storage.kind must be set")
	}
	if c.Storage.DSN == "" {
		errf("storage.dsn", "storage.dsn must be set")
	}
	if c.IntervalMinutes < 0 {
		errf("interval_minutes", "must be >= 0")
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		warnf("metrics.backend", "unknown backend %q; metrics will be disabled", c.Metrics.Backend)
	}

	if len(c.Producers) == 0 {
		errf("producers", "at least one producer is required")
	}

	for i, p := range c.Producers {
		path := func(field string) string { return fmt.Sprintf("producers[%d].%s", i, field) }

		if p.Name == "" {
			warnf(path("name"), "unnamed producer; logs will use the adapter kind")
		}
		switch p.Kind {
		case "csv-export":
			if p.TableSelector != "" {
				warnf(path("table_selector"), "ignored for kind=csv-export")
			}
		case "html-export":
			if p.Encoding != "" {
				warnf(path("encoding"), "ignored for kind=html-export")
			}
		case "":
			errf(path("kind"), "producer kind must be set")
		default:
			errf(path("kind"), "unknown producer kind %q", p.Kind)
		}
		if p.Path == "" {
			errf(path("path"), "export path must be set")
		}
		if p.Sheet == "" {
			errf(path("sheet"), "destination sheet must be set")
		}
		if p.KeyColumn == "" {
			errf(path("key_column"), "key column must be set")
		}
		if _, err := merge.ParseKind(p.Strategy); err != nil {
			errf(path("strategy"), "must be one of merge, replace-by-key, patch (got %q)", p.Strategy)
		}
	}

	return issues
}

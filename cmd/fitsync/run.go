package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fitsync/internal/config"
	"fitsync/internal/merge"
	"fitsync/internal/metrics"
	"fitsync/internal/metrics/datadog"
	"fitsync/internal/producer"
	"fitsync/internal/producer/csvexport"
	"fitsync/internal/producer/htmlexport"
	"fitsync/internal/reconcile"
	"fitsync/internal/store"

	// register all backends with the store factory.
	// config selects which to use but the binary supports all of them.
	_ "fitsync/internal/store/all"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var metricsBackendFlg string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run reconciliation passes for every configured producer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if reportIssues(cfg) {
				return fmt.Errorf("configuration is invalid: %s", opts.ConfigPath)
			}
			return run(cmd.Context(), cfg, opts.Verbose, metricsBackendFlg)
		},
	}

	cmd.Flags().StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (datadog, none); overrides config")

	return cmd
}

func run(parent context.Context, cfg config.Config, verbose bool, metricsBackendFlg string) error {
	zlog, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zlog.Sync()
	logg := zap.NewStdLog(zlog)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeMetrics := setupMetrics(ctx, cfg, metricsBackendFlg, logg.Printf)
	defer closeMetrics()

	s, err := store.New(ctx, store.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	s = store.WithRetry(s, store.Policy{
		Attempts: cfg.Storage.RetryAttempts,
		Backoff:  time.Duration(cfg.Storage.RetryBackoffSeconds) * time.Second,
	})
	defer s.Close()

	bindings, err := buildBindings(cfg)
	if err != nil {
		return err
	}

	runner := &reconcile.Runner{
		Engine: &reconcile.Engine{
			Store:   s,
			Logger:  logg,
			Options: reconcile.Options{StampColumn: cfg.StampColumn},
		},
		Logger: logg,
	}

	logg.Printf("run: storage=%s producers=%d interval_minutes=%d",
		cfg.Storage.Kind, len(bindings), cfg.IntervalMinutes)

	start := time.Now()
	if cfg.IntervalMinutes > 0 {
		err = runner.RunEvery(ctx, bindings, time.Duration(cfg.IntervalMinutes)*time.Minute)
	} else {
		err = runner.RunOnce(ctx, bindings)
	}
	if err != nil {
		return err
	}

	if verbose {
		logg.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setupMetrics selects and installs the metrics backend: flag, then env,
// then config. The nop backend stays installed when disabled or on init
// failure so callers never check for nil. The returned func must be deferred;
// for the Datadog backend it stops the flush loop and submits one final time.
func setupMetrics(ctx context.Context, cfg config.Config, flg string, logf func(format string, v ...any)) func() {
	backendName := flg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = cfg.Metrics.Backend
	}

	switch backendName {
	case "datadog":
		jobName := cfg.Job
		if jobName == "" {
			jobName = "fitsync"
		}
		extraTags := datadog.ParseTagsCSV(cfg.Metrics.Tags)
		extraTags = append(extraTags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			logf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		logf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
		metrics.SetBackend(b)

		return func() {
			if err := b.Close(); err != nil {
				logf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		logf("metrics: unknown backend %q; metrics disabled", backendName)
	}
	return func() {}
}

func buildBindings(cfg config.Config) ([]producer.Binding, error) {
	bindings := make([]producer.Binding, 0, len(cfg.Producers))
	for i, pc := range cfg.Producers {
		var (
			p   producer.Producer
			err error
		)
		switch pc.Kind {
		case "csv-export":
			p, err = csvexport.New(csvexport.Options{Path: pc.Path, Encoding: pc.Encoding})
		case "html-export":
			p, err = htmlexport.New(htmlexport.Options{Path: pc.Path, TableSelector: pc.TableSelector})
		default:
			err = fmt.Errorf("unknown producer kind %q", pc.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("producers[%d] (%s): %w", i, pc.Name, err)
		}
		kind, err := merge.ParseKind(pc.Strategy)
		if err != nil {
			return nil, fmt.Errorf("producers[%d] (%s): %w", i, pc.Name, err)
		}

		bindings = append(bindings, producer.Binding{
			Producer:   p,
			Sheet:      pc.Sheet,
			KeyColumn:  pc.KeyColumn,
			SortColumn: pc.SortColumn,
			Strategy:   kind,
		})
	}
	return bindings, nil
}

package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
)

// sweepStatuses are the statuses a worker sweep picks up: everything
// with automated processing pending. Suspended and terminal
// applications are left alone.
var sweepStatuses = []loan.Status{
	loan.StatusCreated,
	loan.StatusValidating,
	loan.StatusVerifyingDocuments,
	loan.StatusCheckingCredit,
	loan.StatusAssessingRisk,
	loan.StatusDeciding,
}

func newWorkCommand() *cobra.Command {
	var interval time.Duration
	var batchSize int

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run a continuous processing worker",
		Long: `Poll the store and advance every application with automated work
pending, until interrupted.

Multiple workers can run against the same store: commits use
optimistic concurrency, so a worker that loses a version race simply
reloads and re-evaluates.

When a config file is given with --config it is watched for changes
and swapped in without a restart. The Prometheus metrics endpoint is
served for the lifetime of the worker.`,
		Example: `  # Work a shared SQLite store, sweeping every 5 seconds
  losa work --db losa.db

  # Slower sweeps with a hot-reloaded config
  losa work --db losa.db --config losa.yaml --interval 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			return runWorker(cmd, rt, interval, batchSize)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "delay between processing sweeps")
	cmd.Flags().IntVar(&batchSize, "batch", 100, "maximum applications advanced per status per sweep")

	return cmd
}

// runWorker serves metrics, watches the config file and sweeps the
// store until the context is cancelled.
func runWorker(cmd *cobra.Command, rt *runtime, interval time.Duration, batchSize int) error {
	ctx := cmd.Context()

	if configPath != "" {
		watcher, err := config.NewWatcher(rt.logger, configPath, func(cfg *config.Config) {
			if err := rt.engine.SetConfig(cfg); err != nil {
				rt.logger.Warn().Err(err).Msg("Rejected configuration reload")
			}
		})
		if err != nil {
			return err
		}
		if err := watcher.Watch(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if err := rt.tel.StartMetricsServer(); err != nil {
		return err
	}

	rt.logger.Info().
		Dur("interval", interval).
		Int("batch", batchSize).
		Msg("Worker started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, rt, batchSize)
		select {
		case <-ctx.Done():
			rt.logger.Info().Msg("Worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// sweep advances every application found in an automatable status. An
// advance failure is logged and the sweep moves on; the application
// stays in place for the next sweep or an operator.
func sweep(ctx context.Context, rt *runtime, batchSize int) {
	for _, status := range sweepStatuses {
		if ctx.Err() != nil {
			return
		}
		apps, err := rt.engine.ListByStatus(ctx, status, batchSize, 0)
		if err != nil {
			rt.logger.Error().Err(err).
				Str("status", string(status)).
				Msg("Listing applications failed")
			continue
		}
		for _, app := range apps {
			if ctx.Err() != nil {
				return
			}
			if _, err := rt.engine.Advance(ctx, app.ID); err != nil {
				rt.logger.Error().Err(err).
					Str("application", app.ID).
					Msg("Advance failed")
			}
		}
	}
}

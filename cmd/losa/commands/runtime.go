package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/policy"
	"github.com/openlosa/losa/pkg/providers"
	"github.com/openlosa/losa/pkg/stores"
	"github.com/openlosa/losa/pkg/telemetry"
)

// runtime bundles the wired workflow stack for one command invocation.
type runtime struct {
	cfg    *config.Config
	store  stores.Store
	engine *engine.Engine
	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

// openRuntime loads the configuration, opens the store and wires the
// engine with the simulated capability clients.
func openRuntime(ctx context.Context) (*runtime, error) {
	logger := log.Logger
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var policies *policy.Engine
	if cfg.Policy.Enabled {
		policies, err = policy.NewEngine(logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("initializing policy engine: %w", err)
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := policies.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				store.Close()
				return nil, fmt.Errorf("loading policies: %w", err)
			}
		}
	}

	eng, err := engine.New(store, cfg, engine.Capabilities{
		Analyzer: providers.NewSimulatedDocumentAnalyzer(),
		Bureau:   providers.NewSimulatedCreditBureau(),
		Risk:     providers.NewSimulatedRiskModel(),
		Notifier: providers.MultiNotifier{
			providers.NewLogNotifier(logger),
			providers.NewEventNotifier(tel.Events),
		},
	}, engine.Options{
		Logger:   &logger,
		Metrics:  tel.Metrics,
		Tracer:   tel.Tracer,
		Policies: policies,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, store: store, engine: eng, tel: tel, logger: logger}, nil
}

// openStore picks SQLite when a path is configured and the in-memory
// store otherwise. The --db flag overrides the configured path.
func openStore(ctx context.Context, cfg *config.Config) (stores.Store, error) {
	path := dbPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return stores.NewMemoryStore(), nil
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating store %s: %w", path, err)
	}
	return store, nil
}

func (r *runtime) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tel.Flush(shutdownCtx); err != nil {
		r.logger.Warn().Err(err).Msg("Telemetry flush failed")
	}
	if err := r.tel.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("Store close failed")
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printApplication writes an application summary, or the full snapshot
// as JSON when --json is set.
func printApplication(app *loan.Application) error {
	if jsonOutput {
		return printJSON(app)
	}

	fmt.Printf("Application:  %s\n", app.ID)
	fmt.Printf("Status:       %s (version %d)\n", app.Status, app.Version)
	fmt.Printf("Applicant:    %s %s\n", app.Personal.FirstName, app.Personal.LastName)
	fmt.Printf("Loan:         %s, %.2f over %d months\n",
		app.Details.Type, app.Details.RequestedAmount, app.Details.RequestedTermMonths)
	if app.DTIRatio > 0 {
		fmt.Printf("DTI:          %.2f\n", app.DTIRatio)
	}
	if score := app.AuthoritativeCreditScore(); score != nil {
		fmt.Printf("Credit:       %d (%s)\n", score.Score, score.Bureau)
	}
	if app.RiskAssessment != nil {
		fmt.Printf("Risk:         %d (%s)\n", app.RiskAssessment.Score, app.RiskAssessment.Band)
	}
	if len(app.MissingDocuments) > 0 {
		names := make([]string, len(app.MissingDocuments))
		for i, t := range app.MissingDocuments {
			names[i] = string(t)
		}
		fmt.Printf("Missing:      %s\n", strings.Join(names, ", "))
	}
	if app.AssignedReviewer != "" {
		fmt.Printf("Reviewer:     %s\n", app.AssignedReviewer)
	}
	if app.Decision != nil {
		d := app.Decision
		fmt.Printf("Decision:     %s (by %s, confidence %.2f)\n", d.Outcome, d.DecidedBy, d.Confidence)
		switch d.Outcome {
		case loan.OutcomeApproved, loan.OutcomeCounterOffer:
			fmt.Printf("Offer:        %.2f over %d months at %.2f%%\n",
				d.ApprovedAmount, d.ApprovedTermMonths, d.InterestRate)
			for _, c := range d.Conditions {
				fmt.Printf("Condition:    %s\n", c)
			}
		case loan.OutcomeRejected:
			for _, reason := range d.RejectionReasons {
				fmt.Printf("Reason:       %s\n", reason)
			}
		}
		if d.Explanation != "" {
			fmt.Printf("Explanation:  %s\n", d.Explanation)
		}
	}
	return nil
}

package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/policy"
	"github.com/openlosa/losa/pkg/stores"
	"github.com/openlosa/losa/pkg/telemetry"
)

// Capabilities are the external clients the workflow stages call.
type Capabilities struct {
	// Analyzer verifies attached documents.
	Analyzer DocumentAnalyzer

	// Bureau pulls credit reports.
	Bureau CreditBureauClient

	// Risk scores applications.
	Risk RiskModel

	// Notifier delivers status notifications. Optional; nil disables
	// notifications.
	Notifier NotificationSender
}

// Options tune engine construction. The zero value is usable.
type Options struct {
	// Logger receives engine logs. Nil selects a no-op logger.
	Logger *zerolog.Logger

	// Metrics receives engine metrics. Nil selects a disabled collector.
	Metrics *telemetry.Metrics

	// Tracer emits spans for advances, stage executions and capability
	// calls. Nil selects a no-op tracer.
	Tracer *telemetry.Tracer

	// Policies is the underwriting policy engine evaluated during
	// validation. Nil runs the native rule set instead.
	Policies *policy.Engine

	// Clock overrides the time source. Nil selects time.Now.
	Clock func() time.Time
}

// Engine drives loan applications through the underwriting workflow.
//
// All mutations go through the store's versioned commits, so any number
// of Engine instances (or processes) can safely work the same store;
// losers of a version race reload and re-evaluate.
type Engine struct {
	store     stores.Store
	cfg       atomic.Pointer[config.Config]
	executors map[loan.Stage]StageExecutor
	notifier  NotificationSender
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	now       func() time.Time

	// sleep is the retry delay; tests replace it to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a workflow engine over the given store and capabilities.
func New(store stores.Store, cfg *config.Config, caps Capabilities, opts Options) (*Engine, error) {
	if store == nil {
		return nil, NewContractError("engine requires a store", nil)
	}
	if cfg == nil {
		return nil, NewContractError("engine requires a configuration", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError("engine configuration invalid", err)
	}
	if caps.Analyzer == nil || caps.Bureau == nil || caps.Risk == nil {
		return nil, NewContractError("engine requires analyzer, bureau and risk capabilities", nil)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "engine").Logger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		var err error
		metrics, err = telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
		if err != nil {
			return nil, NewPermanentError("metrics init failed", err)
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		var err error
		tracer, err = telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "losa", "", "")
		if err != nil {
			return nil, NewPermanentError("tracer init failed", err)
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		store:    store,
		notifier: caps.Notifier,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		now:      clock,
		sleep:    sleepContext,
	}
	e.cfg.Store(cfg)

	e.executors = map[loan.Stage]StageExecutor{
		loan.StageValidate: &validateStage{
			cfg:      e.config,
			policies: opts.Policies,
			logger:   logger,
			now:      clock,
		},
		loan.StageVerifyDocuments: &documentStage{
			analyzer: caps.Analyzer,
			cfg:      e.config,
			logger:   logger,
			metrics:  metrics,
			tracer:   tracer,
			now:      clock,
		},
		loan.StageCreditCheck: &creditStage{
			bureau:  caps.Bureau,
			logger:  logger,
			metrics: metrics,
			tracer:  tracer,
			now:     clock,
		},
		loan.StageAssessRisk: &riskStage{
			model:   caps.Risk,
			cfg:     e.config,
			logger:  logger,
			metrics: metrics,
			tracer:  tracer,
			now:     clock,
		},
		loan.StageDecide: &decideStage{
			cfg:     e.config,
			logger:  logger,
			metrics: metrics,
			now:     clock,
		},
	}

	return e, nil
}

// config returns the current configuration snapshot. Each operation
// reads it once so a mid-flight reload cannot mix rule sets.
func (e *Engine) config() *config.Config {
	return e.cfg.Load()
}

// SetConfig swaps in a new configuration. Wired as the config watcher's
// swap callback; in-flight operations keep the snapshot they started
// with.
func (e *Engine) SetConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return NewValidationError("rejecting config swap", err)
	}
	e.cfg.Store(cfg)
	e.logger.Info().Msg("Configuration reloaded")
	return nil
}

// notify delivers a notification without ever failing the workflow.
func (e *Engine) notify(ctx context.Context, event string, app *loan.Application, detail string) {
	if e.notifier == nil {
		return
	}
	n := Notification{
		ApplicationID: app.ID,
		Event:         event,
		Status:        app.Status,
		Detail:        detail,
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn().Err(err).
			Str("application", app.ID).
			Str("event", event).
			Msg("Notification delivery failed")
	}
}

// sleepContext waits for the duration or the context, whichever ends
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/stores"
	"github.com/openlosa/losa/pkg/telemetry"
)

// Advance drives the application forward until it reaches a terminal
// status or a suspension point (awaiting documents, pending human
// review). Advancing a terminal application is an idempotent no-op.
//
// A version conflict means another worker committed first; the
// application is reloaded and re-evaluated, bounded by the configured
// re-evaluation limit.
func (e *Engine) Advance(ctx context.Context, id string) (*loan.Application, error) {
	cfg := e.config()
	start := e.now()
	e.metrics.RecordAdvanceStarted()

	ctx, span := e.tracer.StartAdvanceSpan(ctx, id)
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= cfg.Engine.ReevaluationLimit; attempt++ {
		app, err := e.load(ctx, id)
		if err != nil {
			telemetry.RecordError(span, err)
			e.metrics.RecordAdvanceCompleted("error", time.Since(start))
			return nil, err
		}

		app, err = e.drive(ctx, cfg, app)
		if errors.Is(err, stores.ErrVersionConflict) {
			lastErr = err
			e.metrics.RecordVersionConflict()
			e.logger.Warn().
				Str("application", id).
				Int("attempt", attempt+1).
				Msg("Version conflict, reloading")
			continue
		}
		if err != nil {
			telemetry.RecordError(span, err)
			e.recordWorkflowError(err)
			e.metrics.RecordAdvanceCompleted("error", time.Since(start))
			return nil, err
		}
		span.SetAttributes(telemetry.AttrStatus.String(string(app.Status)))
		telemetry.RecordSuccess(span)
		e.metrics.RecordAdvanceCompleted(string(app.Status), time.Since(start))
		return app, nil
	}

	err := NewConflictError("advance lost repeated version races", lastErr).
		WithApplication(id).
		WithCode(ErrCodeReevalExhausted)
	telemetry.RecordError(span, err)
	e.metrics.RecordAdvanceCompleted("conflict", time.Since(start))
	return nil, err
}

// drive runs the stage loop over one loaded snapshot. Every committed
// transition re-reads nothing: the committed clone becomes the working
// snapshot, so a conflict can only surface at commit time.
func (e *Engine) drive(ctx context.Context, cfg *config.Config, app *loan.Application) (*loan.Application, error) {
	for {
		if app.Status.IsTerminal() || app.Status.IsSuspended() {
			return app, nil
		}

		if app.Status == loan.StatusCreated {
			next, err := e.beginProcessing(ctx, app)
			if err != nil {
				return app, err
			}
			app = next
			continue
		}

		stage := loan.StageFor(app.Status)
		exec, ok := e.executors[stage]
		if !ok {
			return app, NewContractError(
				fmt.Sprintf("no executor for status %s", app.Status), nil).
				WithApplication(app.ID).
				WithCode(ErrCodeIllegalTransition)
		}

		// Stage occupancy budget.
		if entered := app.StageEnteredAt(stage); !entered.IsZero() {
			if occupancy := e.now().Sub(entered); occupancy > cfg.Engine.StageTimeout.Std() {
				cause := NewTimeoutError(
					fmt.Sprintf("stage %s exceeded its %s budget (occupied %s)",
						stage, cfg.Engine.StageTimeout.Std(), occupancy.Round(time.Second)), nil).
					WithApplication(app.ID).
					WithStage(string(stage)).
					WithCode(ErrCodeStageTimeout)
				next, err := e.abandonStage(ctx, app, stage, cause)
				if err != nil {
					return app, err
				}
				app = next
				continue
			}
		}

		next := app.Clone()
		stageCtx, cancel := context.WithTimeout(ctx, cfg.Engine.CapabilityTimeout.Std())
		stageCtx, stageSpan := e.tracer.StartStageSpan(stageCtx, app.ID, string(stage))
		stageStart := e.now()
		result, execErr := exec.Execute(stageCtx, next)
		if execErr != nil {
			telemetry.RecordError(stageSpan, execErr)
		} else {
			stageSpan.SetAttributes(telemetry.AttrIntent.String(string(result.Intent)))
			telemetry.RecordSuccess(stageSpan)
		}
		stageSpan.End()
		cancel()

		if execErr != nil {
			e.metrics.RecordStageExecution(string(stage), "error", time.Since(stageStart))
			// A capability that ran out of the per-call budget is a
			// transient failure unless the caller's context is gone.
			if errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil && !IsRetryable(execErr) {
				execErr = NewTransientError("capability call exceeded its timeout", execErr).
					WithApplication(app.ID).
					WithStage(string(stage))
			}

			if IsRetryable(execErr) {
				retried, err := e.retryStage(ctx, cfg, app, stage, execErr)
				if err != nil {
					return app, err
				}
				app = retried
				continue
			}
			if IsContract(execErr) || errors.Is(execErr, context.Canceled) {
				// Bugs and cancellations abort without committing.
				return app, execErr
			}

			var cause *WorkflowError
			if !errors.As(execErr, &cause) {
				cause = NewPermanentError("stage execution failed", execErr).
					WithApplication(app.ID).
					WithStage(string(stage))
			}
			failed, err := e.abandonStage(ctx, app, stage, cause)
			if err != nil {
				return app, err
			}
			app = failed
			continue
		}
		e.metrics.RecordStageExecution(string(stage), string(result.Intent), time.Since(stageStart))

		target, err := result.Intent.Target(app.Status)
		if err != nil {
			// Contract violation: abort without committing anything.
			return app, err
		}

		now := e.now()
		// Every rejection carries a decision record; stages that reject
		// without writing one get a synthesized record from their reasons.
		if target == loan.StatusRejected && next.Decision == nil {
			next.Decision = &loan.DecisionRecord{
				ID:               uuid.NewString(),
				Outcome:          loan.OutcomeRejected,
				Confidence:       1.0,
				RejectionReasons: result.RejectionReasons,
				DecidedBy:        systemActor,
				Explanation:      result.Detail,
				DecidedAt:        now,
			}
		}
		e.applyTransition(next, stage, target, now)
		entry := transitionEntry(app.ID, stage, systemActor, app.Status, target,
			result.Changes, result.Detail, now)
		if err := e.commit(ctx, app.Version, next, []loan.AuditLogEntry{entry}); err != nil {
			return app, err
		}

		telemetry.AddTransitionEvent(telemetry.SpanFromContext(ctx), string(app.Status), string(target))
		e.logger.Info().
			Str("application", app.ID).
			Str("stage", string(stage)).
			Str("from", string(app.Status)).
			Str("to", string(target)).
			Msg("Transition committed")
		e.notifyTransition(ctx, next, result)

		app = next
	}
}

// beginProcessing commits the Created -> Validating transition.
func (e *Engine) beginProcessing(ctx context.Context, app *loan.Application) (*loan.Application, error) {
	now := e.now()
	next := app.Clone()
	e.applyTransition(next, "", loan.StatusValidating, now)
	entry := transitionEntry(app.ID, loan.StageValidate, systemActor,
		app.Status, loan.StatusValidating, nil, "processing started", now)
	if err := e.commit(ctx, app.Version, next, []loan.AuditLogEntry{entry}); err != nil {
		return nil, err
	}
	return next, nil
}

// retryStage commits a retry-count bump and waits out the backoff. When
// the retry budget is exhausted the application is abandoned instead.
func (e *Engine) retryStage(ctx context.Context, cfg *config.Config, app *loan.Application, stage loan.Stage, cause error) (*loan.Application, error) {
	next := app.Clone()
	attempt := next.IncrementRetry(stage)

	if attempt > cfg.Engine.MaxStageRetries {
		exhausted := NewPermanentError(
			fmt.Sprintf("stage %s failed after %d retries", stage, cfg.Engine.MaxStageRetries), cause).
			WithApplication(app.ID).
			WithStage(string(stage)).
			WithCode(ErrCodeRetriesExhausted)
		return e.abandonStage(ctx, app, stage, exhausted)
	}

	now := e.now()
	next.UpdatedAt = now
	entry := newAuditEntry(app.ID, stage, systemActor, "stage_retry", now)
	entry.Changes = []loan.FieldChange{
		updateChange(fmt.Sprintf("stage_retries.%s", stage), attempt-1, attempt),
	}
	entry.Detail = fmt.Sprintf("retry %d/%d: %v", attempt, cfg.Engine.MaxStageRetries, cause)
	if err := e.commit(ctx, app.Version, next, []loan.AuditLogEntry{entry}); err != nil {
		return nil, err
	}

	e.metrics.RecordStageRetry(string(stage))
	backoff := calculateBackoff(cause, attempt, cfg.Engine)
	e.logger.Warn().
		Str("application", app.ID).
		Str("stage", string(stage)).
		Int("attempt", attempt).
		Dur("backoff", backoff).
		Err(cause).
		Msg("Stage failed, retrying")

	if err := e.sleep(ctx, backoff); err != nil {
		return nil, err
	}
	return next, nil
}

// abandonStage moves the application to Failed, or to Rejected where the
// state machine has no Failed edge (document verification). The cause
// lands in the audit trail.
func (e *Engine) abandonStage(ctx context.Context, app *loan.Application, stage loan.Stage, cause *WorkflowError) (*loan.Application, error) {
	target := loan.StatusFailed
	if !loan.CanTransition(app.Status, target) {
		target = loan.StatusRejected
	}

	now := e.now()
	next := app.Clone()
	if target == loan.StatusRejected && next.Decision == nil {
		next.Decision = &loan.DecisionRecord{
			ID:               uuid.NewString(),
			Outcome:          loan.OutcomeRejected,
			Confidence:       1.0,
			RejectionReasons: []string{cause.Message},
			DecidedBy:        systemActor,
			Explanation:      "Processing could not be completed",
			DecidedAt:        now,
		}
	}
	e.applyTransition(next, stage, target, now)
	entry := transitionEntry(app.ID, stage, systemActor, app.Status, target, nil, cause.Error(), now)
	if err := e.commit(ctx, app.Version, next, []loan.AuditLogEntry{entry}); err != nil {
		return nil, err
	}

	e.recordWorkflowError(cause)
	e.logger.Error().
		Str("application", app.ID).
		Str("stage", string(stage)).
		Str("target", string(target)).
		Err(cause).
		Msg("Stage abandoned")
	e.notify(ctx, "application_failed", next, cause.Message)

	return next, nil
}

// applyTransition performs the status-change bookkeeping on the clone
// about to be committed.
func (e *Engine) applyTransition(app *loan.Application, stage loan.Stage, target loan.Status, at time.Time) {
	if stage != "" {
		app.ExitStage(stage, at)
	}
	app.Status = target
	app.UpdatedAt = at

	switch {
	case target.IsActive():
		if next := loan.StageFor(target); next != "" {
			app.EnterStage(next, at)
		}
	case target == loan.StatusPendingHumanReview:
		// Queue time is measured but never subject to the stage budget.
		app.EnterStage(loan.StageHumanReview, at)
	}

	switch target {
	case loan.StatusApproved, loan.StatusRejected, loan.StatusCounterOffered:
		decided := at
		app.DecidedAt = &decided
	}
}

// commit writes the snapshot and its audit entries at the expected
// version, classifying store failures.
func (e *Engine) commit(ctx context.Context, expectedVersion int64, app *loan.Application, entries []loan.AuditLogEntry) error {
	err := e.store.CommitTransition(ctx, app.ID, expectedVersion, app, entries)
	if err == nil {
		return nil
	}
	if errors.Is(err, stores.ErrVersionConflict) || errors.Is(err, stores.ErrNotFound) {
		return err
	}
	return NewPermanentError("store commit failed", err).
		WithApplication(app.ID).
		WithCode(ErrCodeStoreFailed)
}

// load fetches a snapshot, classifying store errors.
func (e *Engine) load(ctx context.Context, id string) (*loan.Application, error) {
	app, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, NewValidationError("application not found", err).
				WithApplication(id).
				WithCode(ErrCodeNotFound)
		}
		return nil, NewPermanentError("store load failed", err).
			WithApplication(id).
			WithCode(ErrCodeStoreFailed)
	}
	return app, nil
}

// notifyTransition sends the event matching the committed transition.
func (e *Engine) notifyTransition(ctx context.Context, app *loan.Application, result *StageResult) {
	switch app.Status {
	case loan.StatusAwaitingDocuments:
		e.notify(ctx, "documents_requested", app, result.Detail)
	case loan.StatusPendingHumanReview:
		e.notify(ctx, "review_requested", app, result.Detail)
	case loan.StatusApproved, loan.StatusRejected, loan.StatusCounterOffered:
		e.notify(ctx, "decision_made", app, result.Detail)
	case loan.StatusFailed:
		e.notify(ctx, "application_failed", app, result.Detail)
	default:
		e.notify(ctx, "status_changed", app, result.Detail)
	}
}

// recordWorkflowError feeds the error metrics.
func (e *Engine) recordWorkflowError(err error) {
	var we *WorkflowError
	if errors.As(err, &we) {
		e.metrics.RecordError(string(we.Class), we.Code)
	}
}

// calculateBackoff computes the delay before the next retry: exponential
// from the configured base (throttled errors start higher), capped, with
// a deterministic jitter fraction.
func calculateBackoff(err error, attempt int, rules config.EngineRules) time.Duration {
	base := rules.BackoffBase.Std()
	if IsThrottled(err) {
		base *= 4
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if max := rules.BackoffMax.Std(); delay > max {
		delay = max
	}

	jitter := delay / 4
	return delay + jitter/2
}

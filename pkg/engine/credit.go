package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

// creditStage pulls a credit report from the bureau. Transient and
// throttled bureau errors propagate for the orchestrator to retry; a
// permanent bureau error (no credit file, frozen report) rejects the
// application instead of failing it.
type creditStage struct {
	bureau  CreditBureauClient
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	now     func() time.Time
}

func (s *creditStage) Stage() loan.Stage { return loan.StageCreditCheck }

func (s *creditStage) Execute(ctx context.Context, app *loan.Application) (*StageResult, error) {
	start := s.now()
	callCtx, span := s.tracer.StartCapabilitySpan(ctx, "credit_bureau", "pull")
	report, err := s.bureau.Pull(callCtx, app)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
	s.metrics.RecordCapabilityCall("credit_bureau", "pull", time.Since(start))
	if err != nil {
		s.metrics.RecordCapabilityError("credit_bureau", "pull")
		if IsPermanent(err) {
			reason := fmt.Sprintf("Unable to obtain a credit report: %v", err)
			app.Decision = &loan.DecisionRecord{
				ID:               uuid.NewString(),
				Outcome:          loan.OutcomeRejected,
				Confidence:       1.0,
				RejectionReasons: []string{reason},
				DecidedBy:        systemActor,
				Explanation:      "Credit report unavailable",
				DecidedAt:        s.now(),
			}
			return &StageResult{
				Intent:           IntentReject,
				Changes:          []loan.FieldChange{setChange("decision.outcome", loan.OutcomeRejected)},
				Detail:           reason,
				RejectionReasons: []string{reason},
			}, nil
		}

		var we *WorkflowError
		if errors.As(err, &we) {
			we.Application = app.ID
			we.Stage = string(s.Stage())
			return nil, we
		}
		return nil, NewTransientError("credit bureau call failed", err).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeBureauFailed)
	}

	if report.Score < 300 || report.Score > 850 {
		return nil, NewPermanentError(
			fmt.Sprintf("bureau returned out-of-range score %d", report.Score), nil).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeBureauFailed)
	}

	// A fresh pull supersedes any previous authoritative record.
	for i := range app.CreditScores {
		app.CreditScores[i].Authoritative = false
	}
	record := loan.CreditScoreRecord{
		ID:            uuid.NewString(),
		Score:         report.Score,
		Bureau:        report.Bureau,
		Factors:       report.Factors,
		ObtainedAt:    s.now(),
		Authoritative: true,
	}
	app.CreditScores = append(app.CreditScores, record)

	s.logger.Debug().
		Str("application", app.ID).
		Int("score", record.Score).
		Str("bureau", record.Bureau).
		Msg("Credit report obtained")

	return &StageResult{
		Intent: IntentAdvance,
		Changes: []loan.FieldChange{
			appendChange("credit_scores", fmt.Sprintf("%s:%d", record.Bureau, record.Score)),
		},
		Detail: fmt.Sprintf("credit score %d from %s", record.Score, record.Bureau),
	}, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

// riskStage scores the application with the risk model and freezes the
// resulting band together with the thresholds that produced it.
type riskStage struct {
	model   RiskModel
	cfg     func() *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	now     func() time.Time
}

func (s *riskStage) Stage() loan.Stage { return loan.StageAssessRisk }

func (s *riskStage) Execute(ctx context.Context, app *loan.Application) (*StageResult, error) {
	credit := app.AuthoritativeCreditScore()
	if credit == nil {
		return nil, NewContractError("risk assessment requires an authoritative credit score", nil).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeMissingPrereq)
	}

	start := s.now()
	callCtx, span := s.tracer.StartCapabilitySpan(ctx, "risk_model", "score")
	score, err := s.model.Score(callCtx, app, *credit)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
	s.metrics.RecordCapabilityCall("risk_model", "score", time.Since(start))
	if err != nil {
		s.metrics.RecordCapabilityError("risk_model", "score")
		var we *WorkflowError
		if errors.As(err, &we) {
			we.Application = app.ID
			we.Stage = string(s.Stage())
			return nil, we
		}
		return nil, NewTransientError("risk model call failed", err).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeRiskModelFailed)
	}

	overall := score.Overall
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	thresholds := s.cfg().Risk.Thresholds
	record := &loan.RiskAssessmentRecord{
		ID:         uuid.NewString(),
		Score:      overall,
		Factors:    score.Factors,
		Band:       thresholds.BandFor(overall),
		Thresholds: thresholds,
		RiskFlags:  score.Flags,
		AssessedAt: s.now(),
	}
	app.RiskAssessment = record

	s.logger.Debug().
		Str("application", app.ID).
		Int("score", record.Score).
		Str("band", string(record.Band)).
		Msg("Risk assessment completed")

	return &StageResult{
		Intent: IntentAdvance,
		Changes: []loan.FieldChange{
			setChange("risk_assessment.score", record.Score),
			setChange("risk_assessment.band", record.Band),
		},
		Detail: fmt.Sprintf("risk score %d, band %s", record.Score, record.Band),
	}, nil
}

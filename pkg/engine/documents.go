package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

// documentStage verifies the attached documents. Missing required
// documents suspend the application rather than failing it; documents
// that fail analysis put their type back on the missing list so the
// applicant can re-upload. Extracted income that contradicts the
// declared figures rejects the application.
type documentStage struct {
	analyzer DocumentAnalyzer
	cfg      func() *config.Config
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	now      func() time.Time
}

func (s *documentStage) Stage() loan.Stage { return loan.StageVerifyDocuments }

func (s *documentStage) Execute(ctx context.Context, app *loan.Application) (*StageResult, error) {
	cfg := s.cfg()

	if missing := app.MissingRequiredDocuments(); len(missing) > 0 {
		return s.awaitDocuments(app, missing, "required documents not attached"), nil
	}

	var changes []loan.FieldChange
	var incomeReasons []string

	for i := range app.Documents {
		doc := &app.Documents[i]
		if doc.Verified {
			continue
		}

		analysis, err := s.analyzeDocument(ctx, app, *doc)
		if err != nil {
			return nil, err
		}

		doc.Confidence = analysis.Confidence
		doc.VerificationNotes = analysisNotes(analysis)
		doc.Verified = analysis.Valid && analysis.Confidence >= cfg.Documents.MinConfidence

		changes = append(changes, updateChange(
			fmt.Sprintf("documents.%s.verified", doc.ID), false, doc.Verified))

		if !doc.Verified {
			s.logger.Info().
				Str("application", app.ID).
				Str("document", doc.ID).
				Str("type", string(doc.Type)).
				Float64("confidence", analysis.Confidence).
				Strs("issues", analysis.Issues).
				Msg("Document failed verification")
			continue
		}

		if doc.Type == loan.DocumentIncomeProof {
			if reason := s.crossCheckIncome(app, analysis, cfg); reason != "" {
				incomeReasons = append(incomeReasons, reason)
			}
		}
	}

	if len(incomeReasons) > 0 {
		return &StageResult{
			Intent:           IntentReject,
			Changes:          changes,
			Detail:           "documented income contradicts the declared income",
			RejectionReasons: incomeReasons,
		}, nil
	}

	if unverified := unverifiedRequiredTypes(app); len(unverified) > 0 {
		result := s.awaitDocuments(app, unverified, "attached documents failed verification")
		result.Changes = append(changes, result.Changes...)
		return result, nil
	}

	if len(app.MissingDocuments) > 0 {
		changes = append(changes, updateChange("missing_documents", app.MissingDocuments, nil))
		app.MissingDocuments = nil
	}

	return &StageResult{
		Intent:  IntentAdvance,
		Changes: changes,
		Detail:  fmt.Sprintf("%d document(s) verified", len(app.Documents)),
	}, nil
}

// analyzeDocument calls the analyzer under the capability timeout
// already applied by the orchestrator and classifies its errors.
func (s *documentStage) analyzeDocument(ctx context.Context, app *loan.Application, doc loan.DocumentRef) (*DocumentAnalysis, error) {
	start := s.now()
	callCtx, span := s.tracer.StartCapabilitySpan(ctx, "document_analyzer", "analyze")
	analysis, err := s.analyzer.Analyze(callCtx, app, doc)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
	s.metrics.RecordCapabilityCall("document_analyzer", "analyze", time.Since(start))
	if err != nil {
		s.metrics.RecordCapabilityError("document_analyzer", "analyze")
		var we *WorkflowError
		if errors.As(err, &we) {
			we.Application = app.ID
			we.Stage = string(s.Stage())
			return nil, we
		}
		return nil, NewTransientError("document analysis failed", err).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeAnalyzerFailed).
			WithDetail("document_id", doc.ID)
	}
	return analysis, nil
}

// crossCheckIncome compares extracted monthly income against the
// declared figure. Returns a rejection reason on mismatch.
func (s *documentStage) crossCheckIncome(app *loan.Application, analysis *DocumentAnalysis, cfg *config.Config) string {
	extracted, ok := analysis.ExtractedMonthlyIncome()
	if !ok || extracted <= 0 {
		return ""
	}
	declared := app.Employment.MonthlyIncome
	if declared <= 0 {
		return ""
	}
	deviation := math.Abs(extracted-declared) / declared
	if deviation <= cfg.Documents.IncomeMatchTolerance {
		return ""
	}
	return fmt.Sprintf(
		"Documented monthly income %.2f deviates %.0f%% from declared %.2f",
		extracted, deviation*100, declared)
}

// awaitDocuments builds the suspension result, recording the missing
// document types on the snapshot.
func (s *documentStage) awaitDocuments(app *loan.Application, missing []loan.DocumentType, detail string) *StageResult {
	app.MissingDocuments = missing

	names := make([]string, len(missing))
	for i, t := range missing {
		names[i] = string(t)
	}
	return &StageResult{
		Intent:  IntentAwaitDocuments,
		Changes: []loan.FieldChange{setChange("missing_documents", strings.Join(names, ","))},
		Detail:  detail,
	}
}

// unverifiedRequiredTypes returns the required document types with no
// verified document attached.
func unverifiedRequiredTypes(app *loan.Application) []loan.DocumentType {
	verified := make(map[loan.DocumentType]bool)
	for _, d := range app.Documents {
		if d.Verified {
			verified[d.Type] = true
		}
	}
	var missing []loan.DocumentType
	for _, t := range app.RequiredDocuments() {
		if !verified[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// analysisNotes folds the analyzer output into one notes string.
func analysisNotes(analysis *DocumentAnalysis) string {
	notes := analysis.Notes
	if len(analysis.Issues) > 0 {
		if notes != "" {
			notes += "; "
		}
		notes += "issues: " + strings.Join(analysis.Issues, ", ")
	}
	return notes
}

package engine

import (
	"context"

	"github.com/openlosa/losa/pkg/loan"
)

// DocumentAnalysis is the analyzer's verdict on one attached document.
type DocumentAnalysis struct {
	// DocumentType is the type the analyzer classified the document as.
	DocumentType loan.DocumentType `json:"document_type"`

	// Valid reports whether the document is usable for underwriting.
	Valid bool `json:"is_valid"`

	// ExtractedData holds structured fields pulled from the document,
	// e.g. "monthly_income" for an income proof.
	ExtractedData map[string]interface{} `json:"extracted_data,omitempty"`

	// Confidence is the analyzer's confidence in the verdict, 0-1.
	Confidence float64 `json:"confidence_score"`

	// Issues lists problems found with the document.
	Issues []string `json:"issues_found,omitempty"`

	// Notes is a free-text summary of the analysis.
	Notes string `json:"verification_notes,omitempty"`
}

// ExtractedMonthlyIncome returns the monthly income figure extracted from
// the document, if the analyzer produced one.
func (a *DocumentAnalysis) ExtractedMonthlyIncome() (float64, bool) {
	if a.ExtractedData == nil {
		return 0, false
	}
	switch v := a.ExtractedData["monthly_income"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// DocumentAnalyzer analyzes attached supporting documents.
//
// Implementations must classify errors with the engine error types:
// transient failures are retried, permanent failures fail the stage.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, app *loan.Application, doc loan.DocumentRef) (*DocumentAnalysis, error)
}

// CreditReport is one bureau response.
type CreditReport struct {
	// Score is the bureau score, 300-850.
	Score int `json:"score"`

	// Bureau names the reporting bureau.
	Bureau string `json:"bureau"`

	// Factors are the bureau's reason codes or factor strings.
	Factors []string `json:"factors,omitempty"`
}

// CreditBureauClient pulls credit reports.
//
// A transient or throttled error is retried by the orchestrator; a
// permanent error (no credit file, frozen report) rejects the
// application rather than failing it.
type CreditBureauClient interface {
	Pull(ctx context.Context, app *loan.Application) (*CreditReport, error)
}

// RiskScore is the risk model's output: an overall 0-100 score where
// higher means lower risk, with the per-factor breakdown behind it.
type RiskScore struct {
	// Overall is the weighted composite score.
	Overall int `json:"overall"`

	// Factors is the per-factor breakdown.
	Factors loan.RiskFactorScores `json:"factors"`

	// Flags are human-readable risk observations.
	Flags []string `json:"flags,omitempty"`
}

// RiskModel scores an application. The authoritative credit score is
// passed explicitly so the model never depends on record ordering.
type RiskModel interface {
	Score(ctx context.Context, app *loan.Application, credit loan.CreditScoreRecord) (*RiskScore, error)
}

// Notification is an outbound status notification for the applicant or
// an internal queue.
type Notification struct {
	// ApplicationID is the application the notification concerns.
	ApplicationID string `json:"application_id"`

	// Event names what happened, e.g. "status_changed",
	// "documents_requested", "review_requested", "decision_made".
	Event string `json:"event"`

	// Status is the application status after the event.
	Status loan.Status `json:"status"`

	// Detail is a human-readable message.
	Detail string `json:"detail,omitempty"`
}

// NotificationSender delivers notifications. Delivery is best-effort:
// the orchestrator logs failures and never fails a workflow over them.
type NotificationSender interface {
	Notify(ctx context.Context, n Notification) error
}

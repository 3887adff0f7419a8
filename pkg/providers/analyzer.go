package providers

import (
	"context"
	"fmt"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
)

// Analyzer confidence levels for the simulated heuristics.
const (
	confidenceUnreadable = 0.2
	confidenceLowQuality = 0.6
	confidenceLegible    = 0.95

	// minLegibleBytes is the size below which a scan is treated as low
	// quality.
	minLegibleBytes = 1024
)

// SimulatedDocumentAnalyzer is a deterministic stand-in for an OCR and
// document-classification service. It judges documents by their metadata
// and, for income proofs, extracts the income figure from the declared
// application data.
type SimulatedDocumentAnalyzer struct {
	// IncomeSkew scales the extracted monthly income relative to the
	// declared figure. 1.0 (the default when zero) reproduces the
	// declaration exactly; other values simulate documentation that
	// disagrees with the application.
	IncomeSkew float64
}

// NewSimulatedDocumentAnalyzer returns an analyzer with defaults applied.
func NewSimulatedDocumentAnalyzer() *SimulatedDocumentAnalyzer {
	return &SimulatedDocumentAnalyzer{IncomeSkew: 1.0}
}

// Analyze produces a verdict for one attached document.
func (a *SimulatedDocumentAnalyzer) Analyze(ctx context.Context, app *loan.Application, doc loan.DocumentRef) (*engine.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.NewTransientError("document analysis interrupted", err).
			WithCode(engine.ErrCodeAnalyzerFailed)
	}

	analysis := &engine.DocumentAnalysis{
		DocumentType: doc.Type,
	}

	switch {
	case doc.FileSize <= 0:
		analysis.Valid = false
		analysis.Confidence = confidenceUnreadable
		analysis.Issues = []string{"file is empty or unreadable"}
		analysis.Notes = fmt.Sprintf("could not read %s", doc.FileName)
		return analysis, nil
	case doc.FileSize < minLegibleBytes:
		analysis.Valid = true
		analysis.Confidence = confidenceLowQuality
		analysis.Issues = []string{"low quality scan"}
	default:
		analysis.Valid = true
		analysis.Confidence = confidenceLegible
	}

	if doc.Type == loan.DocumentIncomeProof {
		skew := a.IncomeSkew
		if skew == 0 {
			skew = 1.0
		}
		analysis.ExtractedData = map[string]interface{}{
			"monthly_income": app.Employment.MonthlyIncome * skew,
		}
	}

	analysis.Notes = fmt.Sprintf("%s verified from %s", doc.Type, doc.FileName)
	return analysis, nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

// Decision tier cutoffs. Risk scores are 0-100 (higher is safer),
// credit scores 300-850.
const (
	tier1MinRisk   = 75
	tier1MinCredit = 700
	tier2MinRisk   = 65
	tier2MinCredit = 650
	tier3MinRisk   = 45
	tier3MinCredit = 600

	tier1BaseRate = 4.5
	tier2BaseRate = 6.0
	tier3BaseRate = 8.0

	// Tier 3 counter-offers cap the principal and shorten the term.
	tier3AmountCap = 50000
	tier3MaxTerm   = 60

	// DTI above this on a tier-2 approval adds an income verification
	// condition.
	tier2DTICondition = 0.35

	// Rejections call out DTI above this.
	rejectDTILimit = 0.5
)

// decideStage evaluates the deterministic decision rule. It is pure:
// every input comes from the snapshot, so re-running it on the same
// snapshot yields the same decision.
//
// A decision below the confidence floor, or on an application banded
// riskier than the automated floor, routes to human review instead of
// finalizing.
type decideStage struct {
	cfg     func() *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

func (s *decideStage) Stage() loan.Stage { return loan.StageDecide }

func (s *decideStage) Execute(ctx context.Context, app *loan.Application) (*StageResult, error) {
	if app.RiskAssessment == nil {
		return nil, NewContractError("decision requires a risk assessment", nil).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeMissingPrereq)
	}
	credit := app.AuthoritativeCreditScore()
	if credit == nil {
		return nil, NewContractError("decision requires an authoritative credit score", nil).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeMissingPrereq)
	}
	if app.Decision != nil && app.Decision.Outcome.Final() {
		return nil, NewContractError("application already carries a final decision", nil).
			WithApplication(app.ID).
			WithStage(string(s.Stage())).
			WithCode(ErrCodeDecisionExists)
	}

	cfg := s.cfg()
	decision := evaluateDecisionRule(app, app.RiskAssessment.Score, credit.Score,
		cfg.Validation.LargeLoanThreshold, s.now())

	// Route to the review queue when the rule is not confident enough
	// or the application is riskier than automation is allowed to
	// decide.
	band := app.RiskAssessment.Band
	needsReview := decision.Confidence < cfg.Decision.MinConfidence ||
		band.RiskierThan(cfg.Risk.AutomatedFloor)
	if needsReview {
		detail := fmt.Sprintf(
			"routed to human review (recommendation %s, confidence %.2f, band %s)",
			decision.Outcome, decision.Confidence, band)
		s.logger.Info().
			Str("application", app.ID).
			Str("recommendation", string(decision.Outcome)).
			Float64("confidence", decision.Confidence).
			Str("band", string(band)).
			Msg("Decision requires human review")
		return &StageResult{
			Intent: IntentHumanReview,
			Detail: detail,
		}, nil
	}

	app.Decision = decision
	s.metrics.RecordDecision(string(decision.Outcome))

	result := &StageResult{
		Changes: []loan.FieldChange{
			setChange("decision.outcome", decision.Outcome),
			setChange("decision.confidence", fmt.Sprintf("%.2f", decision.Confidence)),
		},
		Detail:           decision.Explanation,
		RejectionReasons: decision.RejectionReasons,
	}
	switch decision.Outcome {
	case loan.OutcomeApproved:
		result.Intent = IntentApprove
	case loan.OutcomeCounterOffer:
		result.Intent = IntentCounterOffer
	default:
		result.Intent = IntentReject
	}
	return result, nil
}

// evaluateDecisionRule applies the tiered decision table. largeLoan is
// the threshold above which tier-2 approvals become counter-offers.
func evaluateDecisionRule(app *loan.Application, riskScore, creditScore int, largeLoan float64, at time.Time) *loan.DecisionRecord {
	requested := app.Details.RequestedAmount
	term := app.Details.RequestedTermMonths

	decision := &loan.DecisionRecord{
		ID:        uuid.NewString(),
		DecidedBy: systemActor,
		DecidedAt: at,
	}

	switch {
	case riskScore >= tier1MinRisk && creditScore >= tier1MinCredit:
		decision.Outcome = loan.OutcomeApproved
		decision.ApprovedAmount = requested
		decision.ApprovedTermMonths = term
		decision.InterestRate = tier1BaseRate + float64(750-creditScore)*0.01
		decision.Confidence = 0.9
		decision.Explanation = fmt.Sprintf(
			"approved at %.2f%%: risk score %d, credit score %d",
			decision.InterestRate, riskScore, creditScore)

	case riskScore >= tier2MinRisk && creditScore >= tier2MinCredit:
		if requested > largeLoan {
			decision.Outcome = loan.OutcomeCounterOffer
			decision.ApprovedAmount = minFloat(requested*0.8, largeLoan)
			decision.Conditions = append(decision.Conditions,
				"Reduced loan amount due to risk assessment")
		} else {
			decision.Outcome = loan.OutcomeApproved
			decision.ApprovedAmount = requested
		}
		decision.ApprovedTermMonths = term
		decision.InterestRate = tier2BaseRate + float64(700-creditScore)*0.02
		decision.Confidence = 0.75
		if app.DTIRatio > tier2DTICondition {
			decision.Conditions = append(decision.Conditions,
				"Additional income verification required")
		}
		decision.Explanation = fmt.Sprintf(
			"%s at %.2f%%: risk score %d, credit score %d",
			decision.Outcome, decision.InterestRate, riskScore, creditScore)

	case riskScore >= tier3MinRisk && creditScore >= tier3MinCredit:
		decision.Outcome = loan.OutcomeCounterOffer
		decision.ApprovedAmount = minFloat(requested*0.6, tier3AmountCap)
		decision.ApprovedTermMonths = minInt(term, tier3MaxTerm)
		decision.InterestRate = tier3BaseRate + float64(650-creditScore)*0.03
		decision.Confidence = 0.6
		decision.Conditions = append(decision.Conditions,
			"Reduced loan amount due to high risk",
			"Shorter repayment term",
			"Cosigner required",
			"Additional collateral may be required")
		decision.Explanation = fmt.Sprintf(
			"counter-offer of %.2f over %d months at %.2f%%",
			decision.ApprovedAmount, decision.ApprovedTermMonths, decision.InterestRate)

	default:
		decision.Outcome = loan.OutcomeRejected
		decision.Confidence = 0.8
		if creditScore < tier3MinCredit {
			decision.RejectionReasons = append(decision.RejectionReasons,
				"Credit score below minimum requirement")
		}
		if riskScore < tier3MinRisk {
			decision.RejectionReasons = append(decision.RejectionReasons,
				"High overall risk assessment")
		}
		if app.DTIRatio > rejectDTILimit {
			decision.RejectionReasons = append(decision.RejectionReasons,
				"Debt-to-income ratio exceeds acceptable limits")
		}
		decision.Explanation = fmt.Sprintf(
			"rejected: risk score %d, credit score %d", riskScore, creditScore)
	}

	return decision
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

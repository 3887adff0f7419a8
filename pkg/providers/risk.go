package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
)

// Risk factor weights. The four components are combined into a 0-100
// composite where higher means lower risk.
const (
	weightPaymentHistory = 0.35
	weightDTI            = 0.25
	weightEmployment     = 0.20
	weightCapacity       = 0.20
)

// SimulatedRiskModel scores applications with a fixed weighted-factor
// model. It is deterministic: the same application and credit record
// always produce the same assessment.
type SimulatedRiskModel struct {
	// Now supplies the evaluation instant for tenure calculations.
	// Defaults to time.Now.
	Now func() time.Time
}

// NewSimulatedRiskModel returns a risk model with defaults applied.
func NewSimulatedRiskModel() *SimulatedRiskModel {
	return &SimulatedRiskModel{Now: time.Now}
}

// Score computes the weighted composite risk score for an application.
func (m *SimulatedRiskModel) Score(ctx context.Context, app *loan.Application, credit loan.CreditScoreRecord) (*engine.RiskScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.NewTransientError("risk model call interrupted", err).
			WithCode(engine.ErrCodeRiskModelFailed)
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	at := now()

	dti := app.DebtToIncome()
	factors := loan.RiskFactorScores{
		DTI:                 dtiScore(dti),
		PaymentHistory:      paymentHistoryScore(credit.Score),
		EmploymentStability: employmentScore(app.Employment, at),
		CreditCapacity:      capacityScore(credit.Score),
	}

	overall := int(float64(factors.PaymentHistory)*weightPaymentHistory +
		float64(factors.DTI)*weightDTI +
		float64(factors.EmploymentStability)*weightEmployment +
		float64(factors.CreditCapacity)*weightCapacity)

	return &engine.RiskScore{
		Overall: overall,
		Factors: factors,
		Flags:   riskFlags(app, credit.Score, dti),
	}, nil
}

// dtiScore scores the debt-to-income position. Lower DTI scores higher.
func dtiScore(dti float64) int {
	switch {
	case dti < 0.2:
		return 100
	case dti < 0.3:
		return 80
	case dti < 0.4:
		return 60
	default:
		return 30
	}
}

// paymentHistoryScore infers a payment track record from the bureau score.
func paymentHistoryScore(creditScore int) int {
	switch {
	case creditScore >= 750:
		return 95
	case creditScore >= 700:
		return 85
	case creditScore >= 650:
		return 70
	case creditScore >= 600:
		return 55
	default:
		return 30
	}
}

// employmentScore scores employment stability from status and tenure.
func employmentScore(emp loan.EmploymentInfo, at time.Time) int {
	switch emp.Status {
	case loan.EmploymentEmployed:
		tenure := emp.TenureMonths(at)
		switch {
		case tenure >= 24:
			return 90
		case tenure >= 12:
			return 75
		default:
			return 50
		}
	case loan.EmploymentSelfEmployed:
		return 60
	default:
		return 20
	}
}

// capacityScore estimates unused borrowing headroom from the bureau score.
func capacityScore(creditScore int) int {
	capacity := int(float64(creditScore) / 8.5)
	if capacity > 100 {
		capacity = 100
	}
	return capacity
}

// riskFlags returns human-readable observations for the risk record.
func riskFlags(app *loan.Application, creditScore int, dti float64) []string {
	var flags []string
	if dti > 0.4 {
		flags = append(flags, fmt.Sprintf("High debt-to-income ratio: %.0f%%", dti*100))
	}
	if creditScore < 650 {
		flags = append(flags, fmt.Sprintf("Below-average credit score: %d", creditScore))
	}
	if app.Employment.AnnualIncome < 40000 {
		flags = append(flags, "Low annual income")
	}
	if utilization := revolvingUtilization(app); utilization > 0.5 {
		flags = append(flags, fmt.Sprintf("High credit utilization: %.0f%%", utilization*100))
	}
	return flags
}

// revolvingUtilization estimates revolving utilization against an assumed
// 50,000 aggregate limit, capped at 90%.
func revolvingUtilization(app *loan.Application) float64 {
	utilization := app.Financial.CreditCardsDebt / 50000
	if utilization > 0.9 {
		utilization = 0.9
	}
	return utilization
}

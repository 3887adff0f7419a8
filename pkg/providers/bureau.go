package providers

import (
	"context"
	"time"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
)

const (
	bureauBaseScore = 650
	bureauMinScore  = 300
	bureauMaxScore  = 850
)

// SimulatedCreditBureau is a deterministic stand-in for a real bureau
// integration. It derives a plausible score from the applicant's declared
// income and debt position, so the same application always produces the
// same report.
type SimulatedCreditBureau struct {
	// BureauName is reported on every pull. Defaults to "Experian".
	BureauName string

	// Latency, when set, is simulated before the report is returned.
	Latency time.Duration
}

// NewSimulatedCreditBureau returns a bureau client with defaults applied.
func NewSimulatedCreditBureau() *SimulatedCreditBureau {
	return &SimulatedCreditBureau{BureauName: "Experian"}
}

// Pull derives a credit report from the application's financial profile.
func (b *SimulatedCreditBureau) Pull(ctx context.Context, app *loan.Application) (*engine.CreditReport, error) {
	if err := b.wait(ctx); err != nil {
		return nil, engine.NewTransientError("credit bureau call interrupted", err).
			WithCode(engine.ErrCodeBureauFailed)
	}

	score := bureauBaseScore

	income := app.Employment.AnnualIncome
	switch {
	case income > 100000:
		score += 50
	case income > 75000:
		score += 30
	case income < 40000:
		score -= 40
	}

	dti := app.DebtToIncome()
	switch {
	case dti < 0.2:
		score += 40
	case dti < 0.3:
		score += 20
	case dti > 0.4:
		score -= 50
	}

	if score < bureauMinScore {
		score = bureauMinScore
	}
	if score > bureauMaxScore {
		score = bureauMaxScore
	}

	name := b.BureauName
	if name == "" {
		name = "Experian"
	}

	return &engine.CreditReport{
		Score:   score,
		Bureau:  name,
		Factors: bureauFactors(score),
	}, nil
}

// bureauFactors returns the reason strings a bureau would attach to a
// score in the given range.
func bureauFactors(score int) []string {
	switch {
	case score < 580:
		return []string{"Payment history concerns", "High credit utilization"}
	case score < 650:
		return []string{"Limited credit history"}
	default:
		return nil
	}
}

func (b *SimulatedCreditBureau) wait(ctx context.Context) error {
	if b.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

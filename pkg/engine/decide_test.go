package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDecideStageRefusesSecondFinalization(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	cfg := config.Default()
	stage := &decideStage{
		cfg:     func() *config.Config { return cfg },
		logger:  zerolog.Nop(),
		metrics: metrics,
		now:     time.Now,
	}

	app := validApplication()
	app.ID = "LOAN-20260201-DECIDE02"
	app.DTIRatio = 0.14
	app.RiskAssessment = &loan.RiskAssessmentRecord{
		ID:    "assessment",
		Score: 90,
		Band:  loan.RiskBandLow,
	}
	app.CreditScores = []loan.CreditScoreRecord{{
		ID:            "pull",
		Score:         740,
		Bureau:        "Equifax",
		ObtainedAt:    time.Now(),
		Authoritative: true,
	}}
	app.Decision = &loan.DecisionRecord{
		ID:                 "prior",
		Outcome:            loan.OutcomeApproved,
		ApprovedAmount:     25000,
		ApprovedTermMonths: 48,
		Confidence:         0.9,
		DecidedBy:          "system",
		DecidedAt:          time.Now(),
	}

	_, err = stage.Execute(context.Background(), app)
	if !IsContract(err) {
		t.Fatalf("Execute() error = %v, want contract violation", err)
	}
	if errorCode(err) != ErrCodeDecisionExists {
		t.Errorf("error code = %s, want %s", errorCode(err), ErrCodeDecisionExists)
	}
}

func TestEvaluateDecisionRule(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	const largeLoan = 100000.0

	base := func(amount float64, term int, dti float64) *loan.Application {
		app := validApplication()
		app.Details.RequestedAmount = amount
		app.Details.RequestedTermMonths = term
		app.DTIRatio = dti
		return app
	}

	tests := []struct {
		name        string
		app         *loan.Application
		risk        int
		credit      int
		wantOutcome loan.DecisionOutcome
		wantAmount  float64
		wantTerm    int
		wantRate    float64
		wantConf    float64
		wantConds   []string
		wantReasons []string
	}{
		{
			name:        "tier one approves at requested terms",
			app:         base(25000, 48, 0.14),
			risk:        80,
			credit:      742,
			wantOutcome: loan.OutcomeApproved,
			wantAmount:  25000,
			wantTerm:    48,
			wantRate:    4.58,
			wantConf:    0.9,
		},
		{
			name:        "tier two approves with a higher rate",
			app:         base(25000, 48, 0.14),
			risk:        70,
			credit:      660,
			wantOutcome: loan.OutcomeApproved,
			wantAmount:  25000,
			wantTerm:    48,
			wantRate:    6.8,
			wantConf:    0.75,
		},
		{
			name:        "tier two adds income condition on high dti",
			app:         base(25000, 48, 0.40),
			risk:        70,
			credit:      660,
			wantOutcome: loan.OutcomeApproved,
			wantAmount:  25000,
			wantTerm:    48,
			wantRate:    6.8,
			wantConf:    0.75,
			wantConds:   []string{"Additional income verification required"},
		},
		{
			name:        "tier two counters a large loan",
			app:         base(150000, 60, 0.14),
			risk:        70,
			credit:      660,
			wantOutcome: loan.OutcomeCounterOffer,
			wantAmount:  100000,
			wantTerm:    60,
			wantRate:    6.8,
			wantConf:    0.75,
			wantConds:   []string{"Reduced loan amount due to risk assessment"},
		},
		{
			name:        "tier three counters with capped amount and term",
			app:         base(100000, 72, 0.14),
			risk:        50,
			credit:      620,
			wantOutcome: loan.OutcomeCounterOffer,
			wantAmount:  50000,
			wantTerm:    60,
			wantRate:    8.9,
			wantConf:    0.6,
			wantConds: []string{
				"Reduced loan amount due to high risk",
				"Shorter repayment term",
				"Cosigner required",
				"Additional collateral may be required",
			},
		},
		{
			name:        "rejects on low credit alone",
			app:         base(25000, 48, 0.14),
			risk:        80,
			credit:      580,
			wantOutcome: loan.OutcomeRejected,
			wantConf:    0.8,
			wantReasons: []string{"Credit score below minimum requirement"},
		},
		{
			name:        "rejects on low risk score alone",
			app:         base(25000, 48, 0.14),
			risk:        30,
			credit:      720,
			wantOutcome: loan.OutcomeRejected,
			wantConf:    0.8,
			wantReasons: []string{"High overall risk assessment"},
		},
		{
			name:        "rejection lists every failing factor",
			app:         base(25000, 48, 0.55),
			risk:        30,
			credit:      580,
			wantOutcome: loan.OutcomeRejected,
			wantConf:    0.8,
			wantReasons: []string{
				"Credit score below minimum requirement",
				"High overall risk assessment",
				"Debt-to-income ratio exceeds acceptable limits",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateDecisionRule(tt.app, tt.risk, tt.credit, largeLoan, at)

			if got.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %s, want %s", got.Outcome, tt.wantOutcome)
			}
			if got.ApprovedAmount != tt.wantAmount {
				t.Errorf("ApprovedAmount = %v, want %v", got.ApprovedAmount, tt.wantAmount)
			}
			if got.ApprovedTermMonths != tt.wantTerm {
				t.Errorf("ApprovedTermMonths = %d, want %d", got.ApprovedTermMonths, tt.wantTerm)
			}
			if !closeTo(got.InterestRate, tt.wantRate) {
				t.Errorf("InterestRate = %v, want %v", got.InterestRate, tt.wantRate)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.DecidedBy != "system" {
				t.Errorf("DecidedBy = %q, want system", got.DecidedBy)
			}
			if !got.DecidedAt.Equal(at) {
				t.Errorf("DecidedAt = %v, want %v", got.DecidedAt, at)
			}
			if got.Explanation == "" {
				t.Error("decision has no explanation")
			}

			if len(got.Conditions) != len(tt.wantConds) {
				t.Fatalf("Conditions = %v, want %v", got.Conditions, tt.wantConds)
			}
			for i, cond := range tt.wantConds {
				if got.Conditions[i] != cond {
					t.Errorf("Conditions[%d] = %q, want %q", i, got.Conditions[i], cond)
				}
			}

			if len(got.RejectionReasons) != len(tt.wantReasons) {
				t.Fatalf("RejectionReasons = %v, want %v", got.RejectionReasons, tt.wantReasons)
			}
			for i, reason := range tt.wantReasons {
				if got.RejectionReasons[i] != reason {
					t.Errorf("RejectionReasons[%d] = %q, want %q", i, got.RejectionReasons[i], reason)
				}
			}
		})
	}
}

package loan

import "testing"

func TestBandFor(t *testing.T) {
	th := RiskThresholds{Low: 80, Medium: 65, High: 45}
	tests := []struct {
		score int
		want  RiskBand
	}{
		{100, RiskBandLow},
		{80, RiskBandLow},
		{79, RiskBandMedium},
		{76, RiskBandMedium},
		{65, RiskBandMedium},
		{64, RiskBandHigh},
		{45, RiskBandHigh},
		{44, RiskBandVeryHigh},
		{40, RiskBandVeryHigh},
		{0, RiskBandVeryHigh},
	}
	for _, tt := range tests {
		if got := th.BandFor(tt.score); got != tt.want {
			t.Errorf("BandFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRiskThresholdsValidate(t *testing.T) {
	if err := (RiskThresholds{Low: 80, Medium: 65, High: 45}).Validate(); err != nil {
		t.Errorf("valid thresholds rejected: %v", err)
	}
	bad := []RiskThresholds{
		{Low: 65, Medium: 65, High: 45},
		{Low: 80, Medium: 45, High: 45},
		{Low: 40, Medium: 65, High: 80},
	}
	for _, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("expected error for thresholds %+v", th)
		}
	}
}

func TestRiskBandOrdering(t *testing.T) {
	if !RiskBandVeryHigh.RiskierThan(RiskBandHigh) {
		t.Error("very_high should be riskier than high")
	}
	if !RiskBandHigh.RiskierThan(RiskBandMedium) {
		t.Error("high should be riskier than medium")
	}
	if RiskBandLow.RiskierThan(RiskBandMedium) {
		t.Error("low should not be riskier than medium")
	}
	if RiskBandMedium.RiskierThan(RiskBandMedium) {
		t.Error("band should not be riskier than itself")
	}
}

func TestDecisionOutcomeFinal(t *testing.T) {
	for _, o := range []DecisionOutcome{OutcomeApproved, OutcomeRejected, OutcomeCounterOffer} {
		if !o.Final() {
			t.Errorf("%s should be final", o)
		}
	}
	if OutcomeRequiresHumanReview.Final() {
		t.Error("requires_human_review should not be final")
	}
	if err := DecisionOutcome("deferred").Validate(); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

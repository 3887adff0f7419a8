package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

func newCreditStage(t *testing.T, bureau CreditBureauClient) *creditStage {
	t.Helper()
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "test", "", "")
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}
	return &creditStage{
		bureau:  bureau,
		logger:  zerolog.Nop(),
		metrics: metrics,
		tracer:  tracer,
		now:     time.Now,
	}
}

func TestCreditStageSupersedesAuthoritativeScore(t *testing.T) {
	stage := newCreditStage(t, &stubBureau{report: &CreditReport{Score: 710, Bureau: "TransUnion"}})

	// A re-run after a stalled workflow: a previous pull is still on
	// the application and marked authoritative.
	app := validApplication()
	app.ID = "LOAN-20260115-CREDIT01"
	app.CreditScores = []loan.CreditScoreRecord{{
		ID:            "prior-pull",
		Score:         688,
		Bureau:        "Experian",
		ObtainedAt:    time.Now().Add(-31 * 24 * time.Hour),
		Authoritative: true,
	}}

	result, err := stage.Execute(context.Background(), app)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Intent != IntentAdvance {
		t.Fatalf("Intent = %s, want advance", result.Intent)
	}
	if len(app.CreditScores) != 2 {
		t.Fatalf("CreditScores length = %d, want 2", len(app.CreditScores))
	}
	authoritative := 0
	for _, record := range app.CreditScores {
		if record.Authoritative {
			authoritative++
		}
	}
	if authoritative != 1 {
		t.Errorf("authoritative records = %d, want exactly 1", authoritative)
	}
	current := app.AuthoritativeCreditScore()
	if current == nil || current.Score != 710 || current.Bureau != "TransUnion" {
		t.Errorf("authoritative score = %+v, want the fresh TransUnion pull", current)
	}
}

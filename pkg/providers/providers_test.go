package providers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/telemetry"
)

func testApplication() *loan.Application {
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	return &loan.Application{
		ID:     "LOAN-20260115-A1B2C3D4",
		Status: loan.StatusCheckingCredit,
		Employment: loan.EmploymentInfo{
			Status:              loan.EmploymentEmployed,
			EmployerName:        "Acme Corp",
			EmploymentStartDate: &start,
			AnnualIncome:        72000,
			MonthlyIncome:       6000,
		},
		Financial: loan.FinancialInfo{
			MonthlyRentMortgage: 900,
			MonthlyDebtPayments: 1200,
			CreditCardsDebt:     10000,
		},
		Details: loan.LoanDetails{
			Type:                loan.LoanTypePersonal,
			RequestedAmount:     25000,
			RequestedTermMonths: 48,
		},
	}
}

func TestSimulatedCreditBureauScore(t *testing.T) {
	tests := []struct {
		name        string
		income      float64
		monthly     float64
		debt        float64
		rent        float64
		wantScore   int
		wantFactors int
	}{
		{
			name:   "mid income moderate dti",
			income: 85000, monthly: 7083.33, debt: 700, rent: 1500,
			wantScore:   680, // base + 30 income, no DTI adjustment at 0.31
			wantFactors: 0,
		},
		{
			name:   "high income low dti",
			income: 120000, monthly: 10000, debt: 1000, rent: 400,
			wantScore:   740, // base + 50 income + 40 for DTI 0.14
			wantFactors: 0,
		},
		{
			name:   "low income high dti",
			income: 35000, monthly: 2916.66, debt: 800, rent: 600,
			wantScore:   560, // base - 40 income - 50 for DTI 0.48
			wantFactors: 2,
		},
	}

	bureau := NewSimulatedCreditBureau()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApplication()
			app.Employment.AnnualIncome = tt.income
			app.Employment.MonthlyIncome = tt.monthly
			app.Financial.MonthlyDebtPayments = tt.debt
			app.Financial.MonthlyRentMortgage = tt.rent

			report, err := bureau.Pull(context.Background(), app)
			if err != nil {
				t.Fatalf("Pull() error = %v", err)
			}
			if report.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", report.Score, tt.wantScore)
			}
			if report.Bureau != "Experian" {
				t.Errorf("Bureau = %q, want Experian", report.Bureau)
			}
			if len(report.Factors) != tt.wantFactors {
				t.Errorf("Factors = %v, want %d entries", report.Factors, tt.wantFactors)
			}
		})
	}
}

func TestSimulatedCreditBureauDeterministic(t *testing.T) {
	bureau := NewSimulatedCreditBureau()
	app := testApplication()

	first, err := bureau.Pull(context.Background(), app)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	second, err := bureau.Pull(context.Background(), app)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if first.Score != second.Score {
		t.Errorf("scores differ across pulls: %d vs %d", first.Score, second.Score)
	}
}

func TestSimulatedCreditBureauCanceledContext(t *testing.T) {
	bureau := NewSimulatedCreditBureau()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bureau.Pull(ctx, testApplication())
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !engine.IsRetryable(err) {
		t.Errorf("expected a retryable error, got %v", err)
	}
}

func TestSimulatedRiskModelScore(t *testing.T) {
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	model := &SimulatedRiskModel{Now: func() time.Time { return at }}

	app := testApplication() // DTI (1200+900)/6000 = 0.35, 36 months tenure
	credit := loan.CreditScoreRecord{Score: 742, Bureau: "Experian"}

	score, err := model.Score(context.Background(), app, credit)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	want := loan.RiskFactorScores{
		DTI:                 60,
		PaymentHistory:      85,
		EmploymentStability: 90,
		CreditCapacity:      87,
	}
	if score.Factors != want {
		t.Errorf("Factors = %+v, want %+v", score.Factors, want)
	}
	// 85*0.35 + 60*0.25 + 90*0.20 + 87*0.20 = 80.15, truncated
	if score.Overall != 80 {
		t.Errorf("Overall = %d, want 80", score.Overall)
	}
	if len(score.Flags) != 0 {
		t.Errorf("Flags = %v, want none", score.Flags)
	}
}

func TestSimulatedRiskModelFlags(t *testing.T) {
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	model := &SimulatedRiskModel{Now: func() time.Time { return at }}

	app := testApplication()
	app.Employment.Status = loan.EmploymentSelfEmployed
	app.Employment.AnnualIncome = 35000
	app.Financial.MonthlyDebtPayments = 2700
	app.Financial.MonthlyRentMortgage = 0 // DTI 0.45
	app.Financial.CreditCardsDebt = 30000 // utilization 0.6
	credit := loan.CreditScoreRecord{Score: 600}

	score, err := model.Score(context.Background(), app, credit)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	// 55*0.35 + 30*0.25 + 60*0.20 + 70*0.20 = 52.75, truncated
	if score.Overall != 52 {
		t.Errorf("Overall = %d, want 52", score.Overall)
	}
	if len(score.Flags) != 4 {
		t.Errorf("Flags = %v, want 4 entries", score.Flags)
	}
}

func TestSimulatedRiskModelUnemployed(t *testing.T) {
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	model := &SimulatedRiskModel{Now: func() time.Time { return at }}

	app := testApplication()
	app.Employment.Status = loan.EmploymentUnemployed

	score, err := model.Score(context.Background(), app, loan.CreditScoreRecord{Score: 700})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score.Factors.EmploymentStability != 20 {
		t.Errorf("EmploymentStability = %d, want 20", score.Factors.EmploymentStability)
	}
}

func TestSimulatedDocumentAnalyzer(t *testing.T) {
	analyzer := NewSimulatedDocumentAnalyzer()
	app := testApplication()

	tests := []struct {
		name           string
		doc            loan.DocumentRef
		wantValid      bool
		wantConfidence float64
		wantIssues     int
	}{
		{
			name:      "empty file is invalid",
			doc:       loan.DocumentRef{Type: loan.DocumentIdentity, FileName: "id.pdf", FileSize: 0},
			wantValid: false, wantConfidence: 0.2, wantIssues: 1,
		},
		{
			name:      "tiny scan is low confidence",
			doc:       loan.DocumentRef{Type: loan.DocumentIdentity, FileName: "id.jpg", FileSize: 512},
			wantValid: true, wantConfidence: 0.6, wantIssues: 1,
		},
		{
			name:      "legible document",
			doc:       loan.DocumentRef{Type: loan.DocumentBankStatement, FileName: "statement.pdf", FileSize: 250000},
			wantValid: true, wantConfidence: 0.95, wantIssues: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := analyzer.Analyze(context.Background(), app, tt.doc)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if analysis.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", analysis.Valid, tt.wantValid)
			}
			if analysis.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", analysis.Confidence, tt.wantConfidence)
			}
			if len(analysis.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d entries", analysis.Issues, tt.wantIssues)
			}
		})
	}
}

func TestSimulatedDocumentAnalyzerIncomeExtraction(t *testing.T) {
	app := testApplication()
	doc := loan.DocumentRef{Type: loan.DocumentIncomeProof, FileName: "paystub.pdf", FileSize: 180000}

	analyzer := NewSimulatedDocumentAnalyzer()
	analysis, err := analyzer.Analyze(context.Background(), app, doc)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	income, ok := analysis.ExtractedMonthlyIncome()
	if !ok {
		t.Fatal("expected extracted monthly income for an income proof")
	}
	if income != 6000 {
		t.Errorf("extracted income = %v, want 6000", income)
	}

	skewed := &SimulatedDocumentAnalyzer{IncomeSkew: 0.5}
	analysis, err = skewed.Analyze(context.Background(), app, doc)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	income, _ = analysis.ExtractedMonthlyIncome()
	if income != 3000 {
		t.Errorf("skewed extracted income = %v, want 3000", income)
	}
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier(zerolog.Nop())
	err := notifier.Notify(context.Background(), engine.Notification{
		ApplicationID: "LOAN-20260115-A1B2C3D4",
		Event:         "decision_made",
		Status:        loan.StatusApproved,
		Detail:        "approved 25000.00 at 4.58%",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
}

func TestEventNotifier(t *testing.T) {
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
		Enabled:     true,
		BufferSize:  10,
		EnableAsync: false,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}
	defer events.Shutdown(context.Background())

	received := make(chan telemetry.Event, 1)
	events.Subscribe(func(event telemetry.Event) {
		received <- event
	}, nil)

	notifier := NewEventNotifier(events)
	err = notifier.Notify(context.Background(), engine.Notification{
		ApplicationID: "LOAN-20260115-A1B2C3D4",
		Event:         "application_failed",
		Status:        loan.StatusFailed,
		Detail:        "retries exhausted",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	select {
	case event := <-received:
		if event.Type != telemetry.EventTypeApplicationFailed {
			t.Errorf("event type = %q, want %q", event.Type, telemetry.EventTypeApplicationFailed)
		}
		if event.Level != telemetry.EventLevelError {
			t.Errorf("event level = %q, want error", event.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestClassifyNotification(t *testing.T) {
	tests := []struct {
		event     string
		wantType  string
		wantLevel string
	}{
		{"application_received", telemetry.EventTypeApplicationSubmitted, telemetry.EventLevelInfo},
		{"documents_requested", telemetry.EventTypeDocumentsRequested, telemetry.EventLevelInfo},
		{"review_requested", telemetry.EventTypeReviewRequested, telemetry.EventLevelInfo},
		{"decision_made", telemetry.EventTypeDecisionMade, telemetry.EventLevelInfo},
		{"application_failed", telemetry.EventTypeApplicationFailed, telemetry.EventLevelError},
		{"status_changed", telemetry.EventTypeStatusChanged, telemetry.EventLevelInfo},
	}
	for _, tt := range tests {
		gotType, gotLevel := classifyNotification(tt.event)
		if gotType != tt.wantType || gotLevel != tt.wantLevel {
			t.Errorf("classifyNotification(%q) = (%q, %q), want (%q, %q)",
				tt.event, gotType, gotLevel, tt.wantType, tt.wantLevel)
		}
	}
}

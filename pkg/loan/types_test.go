package loan

import (
	"strings"
	"testing"
	"time"
)

func validApplication() *Application {
	dob := time.Date(1988, 3, 14, 0, 0, 0, 0, time.UTC)
	start := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	return &Application{
		ID:      "LOAN-20260828-ABCD1234",
		Version: 1,
		Status:  StatusCreated,
		Personal: PersonalInfo{
			FirstName:     "Dana",
			LastName:      "Okafor",
			DateOfBirth:   dob,
			SSN:           "123-45-6789",
			Phone:         "5551234567",
			Email:         "dana.okafor@example.com",
			MaritalStatus: MaritalMarried,
			Dependents:    1,
			Address: Address{
				Street:  "12 Harbor Ln",
				City:    "Portland",
				State:   "OR",
				ZipCode: "97201",
				Country: "US",
			},
		},
		Employment: EmploymentInfo{
			Status:              EmploymentEmployed,
			EmployerName:        "Cascade Systems",
			JobTitle:            "Engineer",
			EmploymentStartDate: &start,
			AnnualIncome:        96000,
			MonthlyIncome:       8000,
		},
		Financial: FinancialInfo{
			MonthlyRentMortgage: 1800,
			MonthlyDebtPayments: 1000,
			MonthlyExpenses:     1200,
			SavingsBalance:      22000,
			CheckingBalance:     6000,
			CreditCardsDebt:     3500,
			AssetsValue:         15000,
		},
		Details: LoanDetails{
			Type:                LoanTypePersonal,
			RequestedAmount:     25000,
			RequestedTermMonths: 60,
			Purpose:             "Consolidate existing high-interest debt",
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestNewApplicationIDFormat(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	id := NewApplicationID(now)
	if !strings.HasPrefix(id, "LOAN-20260828-") {
		t.Errorf("unexpected prefix: %s", id)
	}
	suffix := strings.TrimPrefix(id, "LOAN-20260828-")
	if len(suffix) != 8 {
		t.Errorf("expected 8-char suffix, got %q", suffix)
	}
	if suffix != strings.ToUpper(suffix) {
		t.Errorf("suffix not upper-cased: %q", suffix)
	}

	// Fragments come from fresh UUIDs, so consecutive IDs differ.
	if other := NewApplicationID(now); other == id {
		t.Errorf("consecutive IDs collided: %s", id)
	}
}

func TestDebtToIncome(t *testing.T) {
	app := validApplication()
	got := app.DebtToIncome()
	want := (1000.0 + 1800.0) / 8000.0
	if got != want {
		t.Errorf("DebtToIncome() = %v, want %v", got, want)
	}

	app.Employment.MonthlyIncome = 0
	if got := app.DebtToIncome(); got != 0 {
		t.Errorf("DebtToIncome() with zero income = %v, want 0", got)
	}
}

func TestRequiredDocuments(t *testing.T) {
	tests := []struct {
		name   string
		typ    LoanType
		amount float64
		want   []DocumentType
	}{
		{"small personal loan", LoanTypePersonal, 25000,
			[]DocumentType{DocumentIdentity, DocumentIncomeProof}},
		{"large personal loan", LoanTypePersonal, 80000,
			[]DocumentType{DocumentIdentity, DocumentIncomeProof, DocumentBankStatement}},
		{"home loan", LoanTypeHome, 300000,
			[]DocumentType{DocumentIdentity, DocumentIncomeProof, DocumentBankStatement, DocumentTaxReturn}},
		{"business loan", LoanTypeBusiness, 40000,
			[]DocumentType{DocumentIdentity, DocumentIncomeProof, DocumentBankStatement, DocumentTaxReturn}},
		{"auto loan at threshold", LoanTypeAuto, 50000,
			[]DocumentType{DocumentIdentity, DocumentIncomeProof}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := validApplication()
			app.Details.Type = tt.typ
			app.Details.RequestedAmount = tt.amount
			got := app.RequiredDocuments()
			if len(got) != len(tt.want) {
				t.Fatalf("RequiredDocuments() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("RequiredDocuments()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMissingRequiredDocuments(t *testing.T) {
	app := validApplication()
	app.Details.Type = LoanTypeHome

	missing := app.MissingRequiredDocuments()
	if len(missing) != 4 {
		t.Fatalf("expected 4 missing, got %v", missing)
	}

	app.Documents = append(app.Documents,
		DocumentRef{ID: "d1", Type: DocumentIdentity},
		DocumentRef{ID: "d2", Type: DocumentBankStatement},
	)
	missing = app.MissingRequiredDocuments()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing, got %v", missing)
	}
	if missing[0] != DocumentIncomeProof || missing[1] != DocumentTaxReturn {
		t.Errorf("unexpected missing set: %v", missing)
	}
}

func TestAuthoritativeCreditScore(t *testing.T) {
	app := validApplication()
	if got := app.AuthoritativeCreditScore(); got != nil {
		t.Errorf("expected nil with no pulls, got %+v", got)
	}

	app.CreditScores = []CreditScoreRecord{
		{ID: "c1", Score: 710, Authoritative: false},
		{ID: "c2", Score: 742, Authoritative: true},
	}
	got := app.AuthoritativeCreditScore()
	if got == nil || got.ID != "c2" {
		t.Errorf("expected c2 authoritative, got %+v", got)
	}
}

func TestRetryCounters(t *testing.T) {
	app := validApplication()
	if app.RetryCount(StageCreditCheck) != 0 {
		t.Error("expected zero retries initially")
	}
	if n := app.IncrementRetry(StageCreditCheck); n != 1 {
		t.Errorf("first increment = %d, want 1", n)
	}
	if n := app.IncrementRetry(StageCreditCheck); n != 2 {
		t.Errorf("second increment = %d, want 2", n)
	}
	if app.RetryCount(StageAssessRisk) != 0 {
		t.Error("other stage counter leaked")
	}
}

func TestStageTimings(t *testing.T) {
	app := validApplication()
	t0 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Second)

	app.EnterStage(StageValidate, t0)
	if got := app.StageEnteredAt(StageValidate); !got.Equal(t0) {
		t.Errorf("StageEnteredAt = %v, want %v", got, t0)
	}
	app.ExitStage(StageValidate, t1)
	if got := app.StageEnteredAt(StageValidate); !got.IsZero() {
		t.Errorf("expected no open interval after exit, got %v", got)
	}
	if app.Timings[0].ExitedAt != t1 {
		t.Errorf("interval not closed: %+v", app.Timings[0])
	}
}

func TestCloneIsDeep(t *testing.T) {
	app := validApplication()
	app.Documents = []DocumentRef{{ID: "d1", Type: DocumentIdentity}}
	app.StageRetries = map[Stage]int{StageCreditCheck: 1}

	cp := app.Clone()
	cp.Documents[0].Verified = true
	cp.StageRetries[StageCreditCheck] = 9
	cp.Personal.FirstName = "Changed"

	if app.Documents[0].Verified {
		t.Error("clone shares documents slice")
	}
	if app.StageRetries[StageCreditCheck] != 1 {
		t.Error("clone shares retry map")
	}
	if app.Personal.FirstName != "Dana" {
		t.Error("clone shares personal info")
	}
}

func TestAge(t *testing.T) {
	at := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		dob  time.Time
		want int
	}{
		{time.Date(1988, 3, 14, 0, 0, 0, 0, time.UTC), 38},
		{time.Date(2008, 8, 28, 0, 0, 0, 0, time.UTC), 18},
		{time.Date(2008, 8, 29, 0, 0, 0, 0, time.UTC), 17},
	}
	for _, tt := range tests {
		p := PersonalInfo{DateOfBirth: tt.dob}
		if got := p.Age(at); got != tt.want {
			t.Errorf("Age(dob=%s) = %d, want %d", tt.dob.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestValidateStructure(t *testing.T) {
	if err := ValidateStructure(validApplication()); err != nil {
		t.Fatalf("valid application rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Application)
	}{
		{"nil application", nil},
		{"missing first name", func(a *Application) { a.Personal.FirstName = "" }},
		{"bad ssn", func(a *Application) { a.Personal.SSN = "123456789" }},
		{"bad email", func(a *Application) { a.Personal.Email = "not-an-email" }},
		{"bad zip", func(a *Application) { a.Personal.Address.ZipCode = "9720" }},
		{"zero income", func(a *Application) { a.Employment.MonthlyIncome = 0 }},
		{"amount over product ceiling", func(a *Application) { a.Details.RequestedAmount = 2000000 }},
		{"term too short", func(a *Application) { a.Details.RequestedTermMonths = 3 }},
		{"purpose too short", func(a *Application) { a.Details.Purpose = "car" }},
		{"unknown marital status", func(a *Application) { a.Personal.MaritalStatus = "partnered" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				if err := ValidateStructure(nil); err == nil {
					t.Error("expected error for nil application")
				}
				return
			}
			app := validApplication()
			tt.mutate(app)
			if err := ValidateStructure(app); err == nil {
				t.Error("expected structural validation error")
			}
		})
	}
}

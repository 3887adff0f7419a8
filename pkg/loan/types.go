package loan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoanType categorizes the loan product being applied for.
type LoanType string

const (
	LoanTypePersonal LoanType = "personal"
	LoanTypeAuto     LoanType = "auto"
	LoanTypeHome     LoanType = "home"
	LoanTypeBusiness LoanType = "business"
	LoanTypeStudent  LoanType = "student"
)

// Validate checks if the loan type is a member of the closed set.
func (t LoanType) Validate() error {
	switch t {
	case LoanTypePersonal, LoanTypeAuto, LoanTypeHome, LoanTypeBusiness, LoanTypeStudent:
		return nil
	default:
		return fmt.Errorf("invalid loan type: %s", t)
	}
}

// Secured reports whether the product requires collateral.
func (t LoanType) Secured() bool {
	return t == LoanTypeAuto || t == LoanTypeHome
}

// EmploymentStatus describes the applicant's current employment situation.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
)

// Validate checks if the employment status is a member of the closed set.
func (s EmploymentStatus) Validate() error {
	switch s {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentUnemployed,
		EmploymentRetired, EmploymentStudent:
		return nil
	default:
		return fmt.Errorf("invalid employment status: %s", s)
	}
}

// MaritalStatus is collected for underwriting and compliance reporting.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

// DocumentType categorizes an attached supporting document.
type DocumentType string

const (
	DocumentIdentity               DocumentType = "identity"
	DocumentIncomeProof            DocumentType = "income_proof"
	DocumentEmploymentVerification DocumentType = "employment_verification"
	DocumentBankStatement          DocumentType = "bank_statement"
	DocumentTaxReturn              DocumentType = "tax_return"
	DocumentCollateral             DocumentType = "collateral_document"
	DocumentOther                  DocumentType = "other"
)

// Validate checks if the document type is a member of the closed set.
func (t DocumentType) Validate() error {
	switch t {
	case DocumentIdentity, DocumentIncomeProof, DocumentEmploymentVerification,
		DocumentBankStatement, DocumentTaxReturn, DocumentCollateral, DocumentOther:
		return nil
	default:
		return fmt.Errorf("invalid document type: %s", t)
	}
}

// Address is a postal address for the applicant or their employer.
type Address struct {
	// Street is the street address including unit number.
	Street string `json:"street" validate:"required"`

	// City is the city name.
	City string `json:"city" validate:"required"`

	// State is the two-letter state or province code.
	State string `json:"state" validate:"required"`

	// ZipCode is a 5-digit or ZIP+4 postal code.
	ZipCode string `json:"zip_code" validate:"required,us_zip"`

	// Country is the ISO country code. Defaults to US on intake.
	Country string `json:"country,omitempty"`
}

// PersonalInfo holds the applicant's identity and contact details.
type PersonalInfo struct {
	// FirstName is the applicant's legal first name.
	FirstName string `json:"first_name" validate:"required,max=100"`

	// LastName is the applicant's legal last name.
	LastName string `json:"last_name" validate:"required,max=100"`

	// MiddleName is optional.
	MiddleName string `json:"middle_name,omitempty" validate:"max=100"`

	// DateOfBirth is used for the minimum-age underwriting rule.
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`

	// SSN is the applicant's social security number (###-##-#### form).
	SSN string `json:"ssn" validate:"required,ssn"`

	// Phone is a contact phone number.
	Phone string `json:"phone" validate:"required,us_phone"`

	// Email is the applicant's contact email address.
	Email string `json:"email" validate:"required,email"`

	// MaritalStatus is the applicant's marital status.
	MaritalStatus MaritalStatus `json:"marital_status" validate:"required,oneof=single married divorced widowed"`

	// Dependents counts the applicant's financial dependents.
	Dependents int `json:"dependents" validate:"gte=0"`

	// Address is the applicant's current residence.
	Address Address `json:"address" validate:"required"`
}

// Age returns the applicant's age in whole years at the given instant.
func (p PersonalInfo) Age(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// EmploymentInfo holds income and employment details used by the credit
// check and risk assessment stages.
type EmploymentInfo struct {
	// Status is the applicant's employment status.
	Status EmploymentStatus `json:"status" validate:"required,oneof=employed self_employed unemployed retired student"`

	// EmployerName is required when Status is employed or self_employed.
	EmployerName string `json:"employer_name,omitempty"`

	// JobTitle is the applicant's current position.
	JobTitle string `json:"job_title,omitempty"`

	// EmploymentStartDate feeds the employment-stability risk factor.
	EmploymentStartDate *time.Time `json:"employment_start_date,omitempty"`

	// AnnualIncome is the declared gross annual income in dollars.
	AnnualIncome float64 `json:"annual_income" validate:"gt=0"`

	// MonthlyIncome is the declared gross monthly income. Must be within
	// tolerance of AnnualIncome / 12.
	MonthlyIncome float64 `json:"monthly_income" validate:"gt=0"`

	// OtherIncome is additional verifiable monthly income.
	OtherIncome float64 `json:"other_income" validate:"gte=0"`

	// EmployerAddress is optional.
	EmployerAddress *Address `json:"employer_address,omitempty"`
}

// TenureMonths returns whole months of tenure at the current employer, or
// 0 when no start date is recorded.
func (e EmploymentInfo) TenureMonths(at time.Time) int {
	if e.EmploymentStartDate == nil {
		return 0
	}
	months := 0
	cursor := *e.EmploymentStartDate
	for cursor.AddDate(0, 1, 0).Before(at) || cursor.AddDate(0, 1, 0).Equal(at) {
		cursor = cursor.AddDate(0, 1, 0)
		months++
	}
	return months
}

// FinancialInfo holds the applicant's balance-sheet snapshot.
type FinancialInfo struct {
	// MonthlyRentMortgage is the current housing obligation.
	MonthlyRentMortgage float64 `json:"monthly_rent_mortgage" validate:"gte=0"`

	// MonthlyDebtPayments is the sum of existing monthly debt service.
	MonthlyDebtPayments float64 `json:"monthly_debt_payments" validate:"gte=0"`

	// MonthlyExpenses is other recurring monthly spending.
	MonthlyExpenses float64 `json:"monthly_expenses" validate:"gte=0"`

	// SavingsBalance is the applicant's savings account balance.
	SavingsBalance float64 `json:"savings_balance" validate:"gte=0"`

	// CheckingBalance is the applicant's checking account balance.
	CheckingBalance float64 `json:"checking_balance" validate:"gte=0"`

	// CreditCardsDebt is total revolving debt outstanding.
	CreditCardsDebt float64 `json:"credit_cards_debt" validate:"gte=0"`

	// AssetsValue is the declared value of other assets.
	AssetsValue float64 `json:"assets_value" validate:"gte=0"`
}

// LoanDetails describes the requested product and terms.
type LoanDetails struct {
	// Type is the loan product category.
	Type LoanType `json:"loan_type" validate:"required,oneof=personal auto home business student"`

	// RequestedAmount is the principal requested, in dollars.
	RequestedAmount float64 `json:"requested_amount" validate:"gt=0,lte=1000000"`

	// RequestedTermMonths is the repayment term requested.
	RequestedTermMonths int `json:"requested_term_months" validate:"gte=6,lte=360"`

	// Purpose is a free-text statement of the loan's purpose.
	Purpose string `json:"purpose" validate:"required,min=10,max=500"`

	// CollateralDescription is required for secured products.
	CollateralDescription string `json:"collateral_description,omitempty"`

	// CollateralValue is the declared collateral value in dollars.
	CollateralValue float64 `json:"collateral_value,omitempty" validate:"gte=0"`
}

// DocumentRef is the engine's record of one attached supporting document.
// The engine stores metadata only; file contents live outside the store.
type DocumentRef struct {
	// ID uniquely identifies the attachment.
	ID string `json:"id"`

	// Type categorizes the document.
	Type DocumentType `json:"document_type"`

	// FileName is the original upload file name.
	FileName string `json:"file_name"`

	// FileSize is the upload size in bytes.
	FileSize int64 `json:"file_size"`

	// AttachedAt is when the document was attached to the application.
	AttachedAt time.Time `json:"attached_at"`

	// Verified is set by the document verification stage.
	Verified bool `json:"verified"`

	// Confidence is the analyzer's confidence for this document, 0-1.
	Confidence float64 `json:"confidence,omitempty"`

	// VerificationNotes carries analyzer findings and issues.
	VerificationNotes string `json:"verification_notes,omitempty"`
}

// StageTiming records one stage occupancy interval for SLA measurement.
type StageTiming struct {
	// Stage is the stage that was occupied.
	Stage Stage `json:"stage"`

	// EnteredAt is when the application entered the stage.
	EnteredAt time.Time `json:"entered_at"`

	// ExitedAt is when the application left the stage. Zero while active.
	ExitedAt time.Time `json:"exited_at,omitempty"`
}

// Application is the root aggregate: one loan application and everything
// the workflow has derived about it. The store persists it as a single
// versioned snapshot; every mutation goes through a CommitTransition with
// the expected version.
type Application struct {
	// ID is the human-facing application number, LOAN-YYYYMMDD-XXXXXXXX.
	ID string `json:"id"`

	// Version is incremented on every committed transition. Used for
	// optimistic concurrency control.
	Version int64 `json:"version"`

	// Status is the current workflow state.
	Status Status `json:"status"`

	// Personal, Employment, Financial and Details are the applicant's
	// submitted data. Immutable after intake except through corrections.
	Personal   PersonalInfo   `json:"personal_info" validate:"required"`
	Employment EmploymentInfo `json:"employment_info" validate:"required"`
	Financial  FinancialInfo  `json:"financial_info" validate:"required"`
	Details    LoanDetails    `json:"loan_details" validate:"required"`

	// Documents are the attached supporting documents.
	Documents []DocumentRef `json:"documents,omitempty"`

	// CreditScores holds every bureau pull made for this application,
	// in order obtained. At most one is marked authoritative.
	CreditScores []CreditScoreRecord `json:"credit_scores,omitempty"`

	// RiskAssessment is the most recent risk assessment, if any.
	RiskAssessment *RiskAssessmentRecord `json:"risk_assessment,omitempty"`

	// Decision is the final decision record. Set exactly once.
	Decision *DecisionRecord `json:"decision,omitempty"`

	// DTIRatio is the debt-to-income ratio computed during validation.
	DTIRatio float64 `json:"dti_ratio,omitempty"`

	// MissingDocuments lists the required document types not yet
	// attached, populated when the workflow suspends awaiting documents.
	MissingDocuments []DocumentType `json:"missing_documents,omitempty"`

	// StageRetries counts capability-failure retries per stage. Reset
	// is never performed; the counters are part of the audit picture.
	StageRetries map[Stage]int `json:"stage_retries,omitempty"`

	// Timings records stage occupancy intervals.
	Timings []StageTiming `json:"timings,omitempty"`

	// CreatedAt is the intake timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the last committed transition.
	UpdatedAt time.Time `json:"updated_at"`

	// DecidedAt is set when the application reaches a decision terminal.
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	// AssignedReviewer is the underwriter handling a pending human
	// review, when one has been assigned.
	AssignedReviewer string `json:"assigned_reviewer,omitempty"`
}

// NewApplicationID generates an application number in the form
// LOAN-YYYYMMDD-XXXXXXXX where the suffix is an upper-cased UUID fragment.
func NewApplicationID(now time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("LOAN-%s-%s", now.Format("20060102"), frag)
}

// MonthlyIncome returns total verifiable monthly income including other
// income sources.
func (a *Application) MonthlyIncome() float64 {
	return a.Employment.MonthlyIncome + a.Employment.OtherIncome
}

// DebtToIncome computes the debt-to-income ratio: existing monthly debt
// service plus the housing obligation, over gross monthly income. Returns
// 0 when no income is declared.
func (a *Application) DebtToIncome() float64 {
	income := a.Employment.MonthlyIncome
	if income <= 0 {
		return 0
	}
	return (a.Financial.MonthlyDebtPayments + a.Financial.MonthlyRentMortgage) / income
}

// RequiredDocuments returns the document types this application must carry
// before credit processing. Identity and income proof are always required;
// home and business loans add bank statements and tax returns; other
// products over 50,000 add bank statements.
func (a *Application) RequiredDocuments() []DocumentType {
	docs := []DocumentType{DocumentIdentity, DocumentIncomeProof}
	switch a.Details.Type {
	case LoanTypeHome, LoanTypeBusiness:
		docs = append(docs, DocumentBankStatement, DocumentTaxReturn)
	default:
		if a.Details.RequestedAmount > 50000 {
			docs = append(docs, DocumentBankStatement)
		}
	}
	return docs
}

// MissingRequiredDocuments returns the required document types with no
// attached document, in required order.
func (a *Application) MissingRequiredDocuments() []DocumentType {
	attached := make(map[DocumentType]bool, len(a.Documents))
	for _, d := range a.Documents {
		attached[d.Type] = true
	}
	var missing []DocumentType
	for _, t := range a.RequiredDocuments() {
		if !attached[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// AuthoritativeCreditScore returns the authoritative credit score record,
// or nil when no successful bureau pull has completed.
func (a *Application) AuthoritativeCreditScore() *CreditScoreRecord {
	for i := range a.CreditScores {
		if a.CreditScores[i].Authoritative {
			return &a.CreditScores[i]
		}
	}
	return nil
}

// RetryCount returns the recorded retry count for the given stage.
func (a *Application) RetryCount(stage Stage) int {
	if a.StageRetries == nil {
		return 0
	}
	return a.StageRetries[stage]
}

// IncrementRetry bumps the retry counter for the given stage and returns
// the new count.
func (a *Application) IncrementRetry(stage Stage) int {
	if a.StageRetries == nil {
		a.StageRetries = make(map[Stage]int)
	}
	a.StageRetries[stage]++
	return a.StageRetries[stage]
}

// EnterStage opens a timing interval for the given stage.
func (a *Application) EnterStage(stage Stage, at time.Time) {
	a.Timings = append(a.Timings, StageTiming{Stage: stage, EnteredAt: at})
}

// ExitStage closes the most recent open timing interval for the given
// stage, if one exists.
func (a *Application) ExitStage(stage Stage, at time.Time) {
	for i := len(a.Timings) - 1; i >= 0; i-- {
		if a.Timings[i].Stage == stage && a.Timings[i].ExitedAt.IsZero() {
			a.Timings[i].ExitedAt = at
			return
		}
	}
}

// StageEnteredAt returns the entry time of the most recent open interval
// for the given stage, or the zero time when none is open.
func (a *Application) StageEnteredAt(stage Stage) time.Time {
	for i := len(a.Timings) - 1; i >= 0; i-- {
		if a.Timings[i].Stage == stage && a.Timings[i].ExitedAt.IsZero() {
			return a.Timings[i].EnteredAt
		}
	}
	return time.Time{}
}

// Clone returns a deep copy of the application snapshot. The orchestrator
// mutates clones and commits them; the loaded snapshot is never mutated in
// place.
func (a *Application) Clone() *Application {
	// JSON round-trip keeps the copy honest as fields evolve.
	raw, err := json.Marshal(a)
	if err != nil {
		panic(fmt.Sprintf("application not serializable: %v", err))
	}
	var out Application
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("application not deserializable: %v", err))
	}
	return &out
}

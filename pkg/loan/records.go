package loan

import (
	"fmt"
	"time"
)

// CreditScoreRecord is one bureau pull. Multiple records may exist for an
// application (retries, re-pulls); at most one carries Authoritative and
// downstream stages read only that one.
type CreditScoreRecord struct {
	// ID uniquely identifies the pull.
	ID string `json:"id"`

	// Score is the bureau score, 300-850.
	Score int `json:"score" validate:"gte=300,lte=850"`

	// Bureau names the reporting bureau.
	Bureau string `json:"bureau"`

	// Factors are the bureau's raw reason codes or factor strings.
	Factors []string `json:"factors,omitempty"`

	// ObtainedAt is when the pull completed.
	ObtainedAt time.Time `json:"obtained_at"`

	// Authoritative marks the record downstream stages must use. A new
	// authoritative record supersedes the previous one.
	Authoritative bool `json:"authoritative"`
}

// RiskBand buckets a risk score for routing and pricing.
type RiskBand string

const (
	RiskBandLow      RiskBand = "low"
	RiskBandMedium   RiskBand = "medium"
	RiskBandHigh     RiskBand = "high"
	RiskBandVeryHigh RiskBand = "very_high"
)

// Validate checks if the risk band is a member of the closed set.
func (b RiskBand) Validate() error {
	switch b {
	case RiskBandLow, RiskBandMedium, RiskBandHigh, RiskBandVeryHigh:
		return nil
	default:
		return fmt.Errorf("invalid risk band: %s", b)
	}
}

// severity orders bands from least to most risky.
func (b RiskBand) severity() int {
	switch b {
	case RiskBandLow:
		return 0
	case RiskBandMedium:
		return 1
	case RiskBandHigh:
		return 2
	default:
		return 3
	}
}

// RiskierThan reports whether b represents more risk than other.
func (b RiskBand) RiskierThan(other RiskBand) bool {
	return b.severity() > other.severity()
}

// RiskThresholds holds the score cutoffs that map a 0-100 risk score to a
// band. Cutoffs are inclusive on the low side: a score equal to Low maps
// to the low band.
type RiskThresholds struct {
	// Low is the minimum score for the low band.
	Low int `json:"low" yaml:"low" validate:"gte=0,lte=100"`

	// Medium is the minimum score for the medium band.
	Medium int `json:"medium" yaml:"medium" validate:"gte=0,lte=100"`

	// High is the minimum score for the high band. Scores below High
	// map to very_high.
	High int `json:"high" yaml:"high" validate:"gte=0,lte=100"`
}

// Validate checks the cutoffs are strictly descending.
func (t RiskThresholds) Validate() error {
	if t.Low <= t.Medium || t.Medium <= t.High {
		return fmt.Errorf("risk thresholds must descend: low=%d medium=%d high=%d", t.Low, t.Medium, t.High)
	}
	return nil
}

// BandFor maps a risk score to its band under these thresholds. Higher
// scores mean lower risk.
func (t RiskThresholds) BandFor(score int) RiskBand {
	switch {
	case score >= t.Low:
		return RiskBandLow
	case score >= t.Medium:
		return RiskBandMedium
	case score >= t.High:
		return RiskBandHigh
	default:
		return RiskBandVeryHigh
	}
}

// RiskFactorScores is the per-factor breakdown behind an overall risk
// score. Each component is 0-100.
type RiskFactorScores struct {
	// DTI scores the debt-to-income position.
	DTI int `json:"dti"`

	// PaymentHistory scores the credit payment track record.
	PaymentHistory int `json:"payment_history"`

	// EmploymentStability scores tenure and employment type.
	EmploymentStability int `json:"employment_stability"`

	// CreditCapacity scores unused borrowing headroom.
	CreditCapacity int `json:"credit_capacity"`
}

// RiskAssessmentRecord is the output of the risk assessment stage. The
// band and the thresholds that produced it are frozen together so later
// threshold changes cannot silently reinterpret the assessment.
type RiskAssessmentRecord struct {
	// ID uniquely identifies the assessment.
	ID string `json:"id"`

	// Score is the overall risk score, 0-100. Higher is lower risk.
	Score int `json:"score" validate:"gte=0,lte=100"`

	// Factors is the per-factor breakdown.
	Factors RiskFactorScores `json:"factors"`

	// Band is the bucket the score mapped to at evaluation time.
	Band RiskBand `json:"band"`

	// Thresholds are the cutoffs that applied when Band was computed.
	Thresholds RiskThresholds `json:"thresholds"`

	// RiskFlags are human-readable risk observations from the model.
	RiskFlags []string `json:"risk_flags,omitempty"`

	// AssessedAt is when the assessment completed.
	AssessedAt time.Time `json:"assessed_at"`
}

// DecisionOutcome is the closed set of final decision results.
type DecisionOutcome string

const (
	OutcomeApproved            DecisionOutcome = "approved"
	OutcomeRejected            DecisionOutcome = "rejected"
	OutcomeCounterOffer        DecisionOutcome = "counter_offer"
	OutcomeRequiresHumanReview DecisionOutcome = "requires_human_review"
)

// Validate checks if the outcome is a member of the closed set.
func (o DecisionOutcome) Validate() error {
	switch o {
	case OutcomeApproved, OutcomeRejected, OutcomeCounterOffer, OutcomeRequiresHumanReview:
		return nil
	default:
		return fmt.Errorf("invalid decision outcome: %s", o)
	}
}

// Final reports whether the outcome terminates the workflow.
// requires_human_review routes to the review queue instead.
func (o DecisionOutcome) Final() bool {
	return o == OutcomeApproved || o == OutcomeRejected || o == OutcomeCounterOffer
}

// DecisionRecord is the final ruling on an application. Exactly one final
// record exists per decided application; a second finalization attempt is
// a contract violation.
type DecisionRecord struct {
	// ID uniquely identifies the decision.
	ID string `json:"id"`

	// Outcome is the decision result.
	Outcome DecisionOutcome `json:"outcome"`

	// ApprovedAmount is the approved principal, set for approvals and
	// counter-offers.
	ApprovedAmount float64 `json:"approved_amount,omitempty"`

	// ApprovedTermMonths is the approved repayment term.
	ApprovedTermMonths int `json:"approved_term_months,omitempty"`

	// InterestRate is the annual rate offered, as a percentage.
	InterestRate float64 `json:"interest_rate,omitempty"`

	// Confidence is the rule engine's confidence in the outcome, 0-1.
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// Conditions are stipulations attached to an approval or
	// counter-offer.
	Conditions []string `json:"conditions,omitempty"`

	// RejectionReasons explain a rejection.
	RejectionReasons []string `json:"rejection_reasons,omitempty"`

	// DecidedBy identifies the decision maker: "system" for automated
	// decisions, a reviewer reference otherwise.
	DecidedBy string `json:"decided_by"`

	// Explanation is a human-readable summary of why.
	Explanation string `json:"explanation,omitempty"`

	// DecidedAt is when the decision was made.
	DecidedAt time.Time `json:"decided_at"`
}

// ChangeAction classifies a field delta in an audit entry.
type ChangeAction string

const (
	ChangeSet    ChangeAction = "set"
	ChangeUpdate ChangeAction = "update"
	ChangeAppend ChangeAction = "append"
)

// FieldChange records one field delta applied by a committed transition.
type FieldChange struct {
	// Path is the dotted path of the changed field, e.g.
	// "risk_assessment.band".
	Path string `json:"path"`

	// Before is the prior value rendered as a string. Empty for sets.
	Before string `json:"before,omitempty"`

	// After is the new value rendered as a string.
	After string `json:"after,omitempty"`

	// Action classifies the delta.
	Action ChangeAction `json:"action"`
}

// AuditLogEntry is one immutable line of the audit trail. Entries are
// append-only; a correction is a new entry that names the entry it
// corrects via Corrects.
type AuditLogEntry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// ApplicationID is the application this entry belongs to.
	ApplicationID string `json:"application_id"`

	// Sequence is the entry's position in the application's trail,
	// assigned by the store at commit.
	Sequence int64 `json:"sequence"`

	// Stage is the stage that produced the entry.
	Stage Stage `json:"stage,omitempty"`

	// Actor is "system" or a reviewer reference.
	Actor string `json:"actor"`

	// Action names what happened, e.g. "transition", "document_attached".
	Action string `json:"action"`

	// FromStatus and ToStatus are set on transition entries.
	FromStatus Status `json:"from_status,omitempty"`
	ToStatus   Status `json:"to_status,omitempty"`

	// Changes are the field deltas applied in the same commit.
	Changes []FieldChange `json:"changes,omitempty"`

	// Detail is a human-readable description of the event.
	Detail string `json:"detail,omitempty"`

	// Corrects references an earlier entry this one corrects, if any.
	Corrects string `json:"corrects,omitempty"`

	// RecordedAt is when the entry was created.
	RecordedAt time.Time `json:"recorded_at"`
}

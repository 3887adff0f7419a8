package loan

import (
	"encoding/json"
	"fmt"
)

// Status represents the workflow state of a loan application.
type Status string

const (
	// StatusCreated indicates the application exists but no stage has run yet.
	StatusCreated Status = "created"

	// StatusValidating indicates the validation stage is active.
	StatusValidating Status = "validating"

	// StatusVerifyingDocuments indicates the document verification stage is active.
	StatusVerifyingDocuments Status = "verifying_documents"

	// StatusAwaitingDocuments indicates the workflow is suspended until the
	// applicant attaches missing required documents.
	StatusAwaitingDocuments Status = "awaiting_documents"

	// StatusCheckingCredit indicates the credit check stage is active.
	StatusCheckingCredit Status = "checking_credit"

	// StatusAssessingRisk indicates the risk assessment stage is active.
	StatusAssessingRisk Status = "assessing_risk"

	// StatusDeciding indicates the decision stage is active.
	StatusDeciding Status = "deciding"

	// StatusPendingHumanReview indicates the workflow is suspended until an
	// underwriter submits an explicit decision.
	StatusPendingHumanReview Status = "pending_human_review"

	// StatusApproved is a terminal state: the loan was approved as requested.
	StatusApproved Status = "approved"

	// StatusRejected is a terminal state: the application was rejected.
	StatusRejected Status = "rejected"

	// StatusCounterOffered is a terminal state: the loan was approved with
	// modified terms (reduced amount, shorter term, or added conditions).
	StatusCounterOffered Status = "counter_offered"

	// StatusFailed is a terminal state: the workflow could not complete
	// (retries exhausted, stage timeout, or permanent capability failure).
	StatusFailed Status = "failed"
)

// transitions is the allowed-transition table for the workflow state
// machine. An edge absent from this table is illegal regardless of which
// component requests it.
var transitions = map[Status][]Status{
	StatusCreated:            {StatusValidating},
	StatusValidating:         {StatusVerifyingDocuments, StatusRejected},
	StatusVerifyingDocuments: {StatusAwaitingDocuments, StatusCheckingCredit, StatusRejected},
	StatusAwaitingDocuments:  {StatusVerifyingDocuments},
	StatusCheckingCredit:     {StatusAssessingRisk, StatusRejected, StatusFailed},
	StatusAssessingRisk:      {StatusDeciding, StatusFailed},
	StatusDeciding:           {StatusApproved, StatusRejected, StatusCounterOffered, StatusPendingHumanReview},
	StatusPendingHumanReview: {StatusApproved, StatusRejected, StatusCounterOffered},
}

// CanTransition reports whether the edge from -> to exists in the
// workflow transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the allowed successor states for the given
// status. The returned slice is a copy.
func TransitionsFrom(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// AllStatuses returns every status in the closed set.
func AllStatuses() []Status {
	return []Status{
		StatusCreated, StatusValidating, StatusVerifyingDocuments,
		StatusAwaitingDocuments, StatusCheckingCredit, StatusAssessingRisk,
		StatusDeciding, StatusPendingHumanReview,
		StatusApproved, StatusRejected, StatusCounterOffered, StatusFailed,
	}
}

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCounterOffered, StatusFailed:
		return true
	}
	return false
}

// IsSuspended returns true if the status is a durable suspension point
// awaiting an external event rather than active computation.
func (s Status) IsSuspended() bool {
	return s == StatusAwaitingDocuments || s == StatusPendingHumanReview
}

// IsActive returns true if the status maps to an automated stage executor.
func (s Status) IsActive() bool {
	switch s {
	case StatusValidating, StatusVerifyingDocuments, StatusCheckingCredit,
		StatusAssessingRisk, StatusDeciding:
		return true
	}
	return false
}

// Validate checks if the status is a member of the closed set.
func (s Status) Validate() error {
	switch s {
	case StatusCreated, StatusValidating, StatusVerifyingDocuments,
		StatusAwaitingDocuments, StatusCheckingCredit, StatusAssessingRisk,
		StatusDeciding, StatusPendingHumanReview,
		StatusApproved, StatusRejected, StatusCounterOffered, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid application status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = Status(str)
	return s.Validate()
}

// Stage names one unit of workflow processing. Stages map 1:1 to the
// active statuses plus the two suspension points they resume into.
type Stage string

const (
	// StageValidate checks business rules and computes the DTI ratio.
	StageValidate Stage = "validate"

	// StageVerifyDocuments analyzes attached documents and cross-checks income.
	StageVerifyDocuments Stage = "verify_documents"

	// StageCreditCheck pulls a credit report from the bureau.
	StageCreditCheck Stage = "credit_check"

	// StageAssessRisk scores the application and maps the score to a band.
	StageAssessRisk Stage = "assess_risk"

	// StageDecide evaluates the deterministic decision rule.
	StageDecide Stage = "decide"

	// StageHumanReview is the suspension point for underwriter decisions.
	StageHumanReview Stage = "human_review"

	// StageSubmit is the pseudo-stage recorded for application intake.
	StageSubmit Stage = "submit"
)

// StageFor returns the stage responsible for the given status, or "" when
// the status has no executor (terminal states and Created).
func StageFor(s Status) Stage {
	switch s {
	case StatusValidating:
		return StageValidate
	case StatusVerifyingDocuments, StatusAwaitingDocuments:
		return StageVerifyDocuments
	case StatusCheckingCredit:
		return StageCreditCheck
	case StatusAssessingRisk:
		return StageAssessRisk
	case StatusDeciding:
		return StageDecide
	case StatusPendingHumanReview:
		return StageHumanReview
	}
	return ""
}

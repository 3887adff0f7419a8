package engine

import (
	"context"
	"fmt"

	"github.com/openlosa/losa/pkg/loan"
)

// Intent is a stage executor's verdict: what the orchestrator should do
// with the application next. Executors never set Status themselves; the
// orchestrator maps the intent to a target status and validates the
// transition against the state machine before committing.
type Intent string

const (
	// IntentAdvance moves the application to the next stage in sequence.
	IntentAdvance Intent = "advance"

	// IntentReject moves the application to the rejected terminal.
	IntentReject Intent = "reject"

	// IntentAwaitDocuments suspends the application until the missing
	// documents are attached.
	IntentAwaitDocuments Intent = "await_documents"

	// IntentHumanReview suspends the application into the review queue.
	IntentHumanReview Intent = "human_review"

	// IntentApprove moves the application to the approved terminal.
	IntentApprove Intent = "approve"

	// IntentCounterOffer moves the application to the counter-offered
	// terminal.
	IntentCounterOffer Intent = "counter_offer"

	// IntentFail moves the application to the failed terminal.
	IntentFail Intent = "fail"
)

// advanceTargets maps each active status to its successor for
// IntentAdvance.
var advanceTargets = map[loan.Status]loan.Status{
	loan.StatusCreated:            loan.StatusValidating,
	loan.StatusValidating:         loan.StatusVerifyingDocuments,
	loan.StatusVerifyingDocuments: loan.StatusCheckingCredit,
	loan.StatusCheckingCredit:     loan.StatusAssessingRisk,
	loan.StatusAssessingRisk:      loan.StatusDeciding,
}

// Target resolves the intent to a target status from the given current
// status. Returns a contract error when the intent has no legal target,
// which the orchestrator treats as a bug and aborts without committing.
func (i Intent) Target(from loan.Status) (loan.Status, error) {
	var to loan.Status
	switch i {
	case IntentAdvance:
		next, ok := advanceTargets[from]
		if !ok {
			return "", NewContractError(
				fmt.Sprintf("no advance target from status %s", from), nil).
				WithCode(ErrCodeIllegalTransition)
		}
		to = next
	case IntentReject:
		to = loan.StatusRejected
	case IntentAwaitDocuments:
		to = loan.StatusAwaitingDocuments
	case IntentHumanReview:
		to = loan.StatusPendingHumanReview
	case IntentApprove:
		to = loan.StatusApproved
	case IntentCounterOffer:
		to = loan.StatusCounterOffered
	case IntentFail:
		to = loan.StatusFailed
	default:
		return "", NewContractError(fmt.Sprintf("unknown intent %q", i), nil).
			WithCode(ErrCodeIllegalTransition)
	}

	if !loan.CanTransition(from, to) {
		return "", NewContractError(
			fmt.Sprintf("intent %s maps to illegal transition %s -> %s", i, from, to), nil).
			WithCode(ErrCodeIllegalTransition)
	}
	return to, nil
}

// StageResult is a stage executor's output: the intent plus the audit
// material describing what the stage changed on the snapshot it was
// handed.
type StageResult struct {
	// Intent is the executor's verdict.
	Intent Intent

	// Changes are the field deltas the executor applied, recorded in
	// the transition's audit entry.
	Changes []loan.FieldChange

	// Detail is a human-readable summary for the audit entry.
	Detail string

	// RejectionReasons explain an IntentReject verdict.
	RejectionReasons []string
}

// StageExecutor runs one workflow stage against an application snapshot.
//
// Executors mutate the snapshot they are handed (the orchestrator passes
// a clone) and report what to do next; they never touch Status, Version
// or the store. Capability failures come back as classified workflow
// errors and the snapshot is discarded.
type StageExecutor interface {
	// Stage identifies the stage this executor runs.
	Stage() loan.Stage

	// Execute runs the stage against the snapshot.
	Execute(ctx context.Context, app *loan.Application) (*StageResult, error)
}

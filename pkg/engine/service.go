package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/stores"
)

// SubmitApplication validates the submitted data, assigns an application
// number and persists the application at version 1 with its intake audit
// entry. The caller's value is not mutated.
func (e *Engine) SubmitApplication(ctx context.Context, submitted *loan.Application) (*loan.Application, error) {
	if submitted == nil {
		return nil, NewValidationError("no application submitted", nil).
			WithCode(ErrCodeInvalidApplication)
	}

	app := submitted.Clone()
	now := e.now()

	app.ID = loan.NewApplicationID(now)
	app.Version = 1
	app.Status = loan.StatusCreated
	app.CreatedAt = now
	app.UpdatedAt = now
	app.CreditScores = nil
	app.RiskAssessment = nil
	app.Decision = nil
	app.DecidedAt = nil
	app.StageRetries = nil
	app.Timings = nil
	app.MissingDocuments = nil
	app.AssignedReviewer = ""

	if err := loan.ValidateStructure(app); err != nil {
		return nil, NewValidationError("application failed structural validation", err).
			WithCode(ErrCodeInvalidApplication)
	}

	for i := range app.Documents {
		doc := &app.Documents[i]
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.AttachedAt = now
		doc.Verified = false
		doc.Confidence = 0
		doc.VerificationNotes = ""
	}

	entry := newAuditEntry(app.ID, loan.StageSubmit, systemActor, "application_submitted", now)
	entry.ToStatus = loan.StatusCreated
	entry.Detail = fmt.Sprintf("%s application for %.2f over %d months",
		app.Details.Type, app.Details.RequestedAmount, app.Details.RequestedTermMonths)
	entry.Changes = []loan.FieldChange{
		setChange("status", loan.StatusCreated),
		setChange("loan_details.requested_amount", app.Details.RequestedAmount),
	}

	if err := e.store.Create(ctx, app, []loan.AuditLogEntry{entry}); err != nil {
		return nil, NewPermanentError("storing application failed", err).
			WithApplication(app.ID).
			WithCode(ErrCodeStoreFailed)
	}

	e.metrics.RecordSubmission(string(app.Details.Type))
	e.logger.Info().
		Str("application", app.ID).
		Str("type", string(app.Details.Type)).
		Float64("amount", app.Details.RequestedAmount).
		Msg("Application submitted")
	e.notify(ctx, "application_received", app, entry.Detail)

	return app, nil
}

// AttachDocument appends a document to the application. When the
// application is suspended awaiting documents, the same commit resumes
// it into document verification.
func (e *Engine) AttachDocument(ctx context.Context, id string, doc loan.DocumentRef) (*loan.Application, error) {
	if err := doc.Type.Validate(); err != nil {
		return nil, NewValidationError("invalid document", err).
			WithApplication(id).
			WithCode(ErrCodeInvalidApplication)
	}
	if doc.FileName == "" {
		return nil, NewValidationError("document has no file name", nil).
			WithApplication(id).
			WithCode(ErrCodeInvalidApplication)
	}

	cfg := e.config()
	var lastErr error
	for attempt := 0; attempt <= cfg.Engine.ReevaluationLimit; attempt++ {
		app, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if app.Status.IsTerminal() {
			return nil, NewValidationError(
				fmt.Sprintf("cannot attach documents in status %s", app.Status), nil).
				WithApplication(id).
				WithCode(ErrCodeTerminal)
		}

		now := e.now()
		next := app.Clone()

		attached := doc
		if attached.ID == "" {
			attached.ID = uuid.NewString()
		}
		attached.AttachedAt = now
		attached.Verified = false
		next.Documents = append(next.Documents, attached)

		var remaining []loan.DocumentType
		for _, t := range next.MissingDocuments {
			if t != attached.Type {
				remaining = append(remaining, t)
			}
		}
		next.MissingDocuments = remaining
		next.UpdatedAt = now

		entry := newAuditEntry(id, loan.StageVerifyDocuments, systemActor, "document_attached", now)
		entry.Changes = []loan.FieldChange{
			appendChange("documents", fmt.Sprintf("%s:%s", attached.Type, attached.FileName)),
		}
		entry.Detail = fmt.Sprintf("attached %s (%s)", attached.FileName, attached.Type)

		entries := []loan.AuditLogEntry{entry}
		if app.Status == loan.StatusAwaitingDocuments {
			e.applyTransition(next, loan.StageVerifyDocuments, loan.StatusVerifyingDocuments, now)
			entries = append(entries, transitionEntry(id, loan.StageVerifyDocuments, systemActor,
				app.Status, loan.StatusVerifyingDocuments, nil, "documents received, resuming verification", now))
		}

		err = e.commit(ctx, app.Version, next, entries)
		if errors.Is(err, stores.ErrVersionConflict) {
			lastErr = err
			e.metrics.RecordVersionConflict()
			continue
		}
		if err != nil {
			return nil, err
		}

		e.logger.Info().
			Str("application", id).
			Str("document", attached.ID).
			Str("type", string(attached.Type)).
			Msg("Document attached")
		return next, nil
	}

	return nil, NewConflictError("attach lost repeated version races", lastErr).
		WithApplication(id).
		WithCode(ErrCodeReevalExhausted)
}

// ReviewDecision is an underwriter's ruling on an application pending
// human review.
type ReviewDecision struct {
	// Reviewer identifies the underwriter. Required; never "system".
	Reviewer string `json:"reviewer"`

	// Outcome must be a final outcome: approved, rejected or
	// counter_offer.
	Outcome loan.DecisionOutcome `json:"outcome"`

	// ApprovedAmount and ApprovedTermMonths are required for approvals
	// and counter-offers.
	ApprovedAmount     float64 `json:"approved_amount,omitempty"`
	ApprovedTermMonths int     `json:"approved_term_months,omitempty"`

	// InterestRate is the offered annual rate, as a percentage.
	InterestRate float64 `json:"interest_rate,omitempty"`

	// Conditions are stipulations attached to the offer.
	Conditions []string `json:"conditions,omitempty"`

	// RejectionReasons are required for rejections.
	RejectionReasons []string `json:"rejection_reasons,omitempty"`

	// Rationale is the reviewer's written justification. Required.
	Rationale string `json:"rationale"`
}

// Validate checks the ruling is well-formed.
func (r ReviewDecision) Validate() error {
	if r.Reviewer == "" || r.Reviewer == systemActor {
		return fmt.Errorf("review requires a reviewer reference")
	}
	if r.Rationale == "" {
		return fmt.Errorf("review requires a rationale")
	}
	if err := r.Outcome.Validate(); err != nil {
		return err
	}
	if !r.Outcome.Final() {
		return fmt.Errorf("review outcome %s is not final", r.Outcome)
	}
	switch r.Outcome {
	case loan.OutcomeApproved, loan.OutcomeCounterOffer:
		if r.ApprovedAmount <= 0 {
			return fmt.Errorf("%s requires a positive approved amount", r.Outcome)
		}
		if r.ApprovedTermMonths <= 0 {
			return fmt.Errorf("%s requires a positive approved term", r.Outcome)
		}
	case loan.OutcomeRejected:
		if len(r.RejectionReasons) == 0 {
			return fmt.Errorf("rejection requires at least one reason")
		}
	}
	return nil
}

// SubmitHumanReviewDecision finalizes an application pending human
// review with the underwriter's ruling.
func (e *Engine) SubmitHumanReviewDecision(ctx context.Context, id string, review ReviewDecision) (*loan.Application, error) {
	if err := review.Validate(); err != nil {
		return nil, NewValidationError("invalid review decision", err).
			WithApplication(id).
			WithCode(ErrCodeInvalidReview)
	}

	var target loan.Status
	switch review.Outcome {
	case loan.OutcomeApproved:
		target = loan.StatusApproved
	case loan.OutcomeCounterOffer:
		target = loan.StatusCounterOffered
	default:
		target = loan.StatusRejected
	}

	cfg := e.config()
	var lastErr error
	conflicted := false
	for attempt := 0; attempt <= cfg.Engine.ReevaluationLimit; attempt++ {
		app, err := e.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if app.Status != loan.StatusPendingHumanReview {
			// A reload after a version conflict can find that a
			// concurrent ruling already finalized the application.
			// The losing submission is a no-op, not an error.
			if conflicted && app.Status.IsTerminal() && app.Decision != nil {
				e.logger.Info().
					Str("application", id).
					Str("reviewer", review.Reviewer).
					Str("status", string(app.Status)).
					Msg("Review decision superseded by concurrent ruling")
				return app, nil
			}
			return nil, NewValidationError(
				fmt.Sprintf("application is %s, not pending human review", app.Status), nil).
				WithApplication(id).
				WithCode(ErrCodeNotReviewable)
		}

		now := e.now()
		next := app.Clone()
		next.AssignedReviewer = review.Reviewer
		next.Decision = &loan.DecisionRecord{
			ID:                 uuid.NewString(),
			Outcome:            review.Outcome,
			ApprovedAmount:     review.ApprovedAmount,
			ApprovedTermMonths: review.ApprovedTermMonths,
			InterestRate:       review.InterestRate,
			Confidence:         1.0,
			Conditions:         review.Conditions,
			RejectionReasons:   review.RejectionReasons,
			DecidedBy:          review.Reviewer,
			Explanation:        review.Rationale,
			DecidedAt:          now,
		}
		e.applyTransition(next, loan.StageHumanReview, target, now)

		entry := transitionEntry(id, loan.StageHumanReview, review.Reviewer,
			app.Status, target,
			[]loan.FieldChange{
				setChange("decision.outcome", review.Outcome),
				setChange("assigned_reviewer", review.Reviewer),
			},
			review.Rationale, now)
		entry.Action = "human_review_decision"

		err = e.commit(ctx, app.Version, next, []loan.AuditLogEntry{entry})
		if errors.Is(err, stores.ErrVersionConflict) {
			lastErr = err
			conflicted = true
			e.metrics.RecordVersionConflict()
			continue
		}
		if err != nil {
			return nil, err
		}

		e.metrics.RecordDecision(string(review.Outcome))
		e.logger.Info().
			Str("application", id).
			Str("reviewer", review.Reviewer).
			Str("outcome", string(review.Outcome)).
			Msg("Human review decision recorded")
		e.notify(ctx, "decision_made", next, review.Rationale)
		return next, nil
	}

	return nil, NewConflictError("review lost repeated version races", lastErr).
		WithApplication(id).
		WithCode(ErrCodeReevalExhausted)
}

// GetApplication returns the current snapshot.
func (e *Engine) GetApplication(ctx context.Context, id string) (*loan.Application, error) {
	return e.load(ctx, id)
}

// AuditTrail returns the application's audit entries in commit order.
func (e *Engine) AuditTrail(ctx context.Context, id string) ([]loan.AuditLogEntry, error) {
	if _, err := e.load(ctx, id); err != nil {
		return nil, err
	}
	trail, err := e.store.AuditTrail(ctx, id)
	if err != nil {
		return nil, NewPermanentError("loading audit trail failed", err).
			WithApplication(id).
			WithCode(ErrCodeStoreFailed)
	}
	return trail, nil
}

// ListByStatus returns applications in the given status, most recently
// updated first.
func (e *Engine) ListByStatus(ctx context.Context, status loan.Status, limit, offset int) ([]*loan.Application, error) {
	if err := status.Validate(); err != nil {
		return nil, NewValidationError("invalid status", err)
	}
	apps, err := e.store.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, NewPermanentError("listing applications failed", err).
			WithCode(ErrCodeStoreFailed)
	}
	return apps, nil
}

package engine

import (
	"errors"
	"fmt"
)

// ErrorClass categorizes workflow errors for retry and routing decisions.
type ErrorClass string

const (
	// ErrorClassValidation indicates the application data failed a
	// structural or business-rule check. Never retried.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTransient indicates a temporary capability failure that
	// may succeed on retry.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates a capability rate limit. Retried
	// with a longer initial backoff.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a version conflict on commit. The
	// caller must reload and re-evaluate before retrying.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassContract indicates the engine attempted something the
	// state machine forbids. Always a bug; the operation aborts without
	// committing.
	ErrorClassContract ErrorClass = "contract"

	// ErrorClassTimeout indicates a stage exceeded its occupancy budget.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassPermanent indicates a failure that will not succeed on
	// retry.
	ErrorClassPermanent ErrorClass = "permanent"
)

// WorkflowError is the standard error type for workflow operations.
type WorkflowError struct {
	// Class determines how the orchestrator reacts to the error.
	Class ErrorClass

	// Message is a human-readable description.
	Message string

	// Code is a machine-readable error code.
	Code string

	// Application is the affected application ID, when known.
	Application string

	// Stage is the stage that produced the error, when applicable.
	Stage string

	// Err is the underlying cause, if any.
	Err error

	// Details carries additional structured context.
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Application != "" {
		msg += fmt.Sprintf(" (application=%s", e.Application)
		if e.Stage != "" {
			msg += fmt.Sprintf(", stage=%s", e.Stage)
		}
		msg += ")"
	} else if e.Stage != "" {
		msg += fmt.Sprintf(" (stage=%s)", e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is checks error equality by class and code.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassValidation,
		Message: message,
		Err:     err,
	}
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassThrottled,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewContractError creates a new contract-violation error.
func NewContractError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassContract,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassTimeout,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *WorkflowError {
	return &WorkflowError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithApplication adds the application ID to the error.
func (e *WorkflowError) WithApplication(id string) *WorkflowError {
	e.Application = id
	return e
}

// WithStage adds the stage name to the error.
func (e *WorkflowError) WithStage(stage string) *WorkflowError {
	e.Stage = stage
	return e
}

// WithCode adds an error code to the error.
func (e *WorkflowError) WithCode(code string) *WorkflowError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error.
func (e *WorkflowError) WithDetail(key string, value interface{}) *WorkflowError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient checks if an error is transient.
func IsTransient(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled checks if an error is a throttling error.
func IsThrottled(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassConflict
	}
	return false
}

// IsContract checks if an error is a contract violation.
func IsContract(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassContract
	}
	return false
}

// IsPermanent checks if an error is permanent.
func IsPermanent(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassPermanent
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Class == ErrorClassValidation
	}
	return false
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		switch we.Class {
		case ErrorClassTransient, ErrorClassThrottled:
			return true
		}
	}
	return false
}

// Common error codes.
const (
	ErrCodeNotFound           = "APPLICATION_NOT_FOUND"
	ErrCodeTerminal           = "APPLICATION_TERMINAL"
	ErrCodeIllegalTransition  = "ILLEGAL_TRANSITION"
	ErrCodeMissingPrereq      = "MISSING_PREREQUISITE"
	ErrCodeDecisionExists     = "DECISION_EXISTS"
	ErrCodeBureauFailed       = "BUREAU_FAILED"
	ErrCodeAnalyzerFailed     = "ANALYZER_FAILED"
	ErrCodeRiskModelFailed    = "RISK_MODEL_FAILED"
	ErrCodeStoreFailed        = "STORE_FAILED"
	ErrCodeRetriesExhausted   = "RETRIES_EXHAUSTED"
	ErrCodeStageTimeout       = "STAGE_TIMEOUT"
	ErrCodeReevalExhausted    = "REEVALUATION_EXHAUSTED"
	ErrCodeInvalidApplication = "INVALID_APPLICATION"
	ErrCodeInvalidReview      = "INVALID_REVIEW"
	ErrCodeNotReviewable      = "NOT_REVIEWABLE"
)

package policy

import (
	"time"

	"github.com/openlosa/losa/pkg/loan"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block the application.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that reject the application.
	SeverityError Severity = "error"
)

// Policy represents one underwriting policy with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// ApplicationID is the application that violated the policy.
	ApplicationID string `json:"application_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the result of evaluating all policies against one
// application.
type Result struct {
	// Allowed is false when any error-severity violation fired.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations, warnings included.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems (a policy that failed to run).
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// RejectionReasons returns the messages of error-severity violations,
// suitable for a DecisionRecord's rejection reasons.
func (r *Result) RejectionReasons() []string {
	var reasons []string
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			reasons = append(reasons, v.Message)
		}
	}
	return reasons
}

// Limits carries the configured underwriting limits into policy
// evaluation, so Rego policies read thresholds from input rather than
// hardcoding them.
type Limits struct {
	// MinAge is the minimum applicant age in years.
	MinAge int `json:"min_age"`

	// DTICeiling is the maximum allowed debt-to-income ratio.
	DTICeiling float64 `json:"dti_ceiling"`

	// MinAmount and MaxAmount bound the requested principal for the
	// application's product.
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`

	// MaxTermMonths caps the requested term for the product.
	MaxTermMonths int `json:"max_term_months"`

	// RequiresCollateral is true for secured products.
	RequiresCollateral bool `json:"requires_collateral"`
}

// Derived carries values computed by the validation stage.
type Derived struct {
	// Age is the applicant's age in whole years.
	Age int `json:"age"`

	// DTI is the computed debt-to-income ratio.
	DTI float64 `json:"dti"`
}

// Input is the document handed to Rego evaluation.
type Input struct {
	// Application is the full application snapshot.
	Application *loan.Application `json:"application"`

	// Derived holds values computed during validation.
	Derived Derived `json:"derived"`

	// Limits holds the configured underwriting limits.
	Limits Limits `json:"limits"`

	// Context provides evaluation context.
	Context *Context `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed.
	Operation string `json:"operation,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

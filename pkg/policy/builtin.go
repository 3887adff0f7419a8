package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in underwriting policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		dtiCeilingPolicy(),
		productBoundsPolicy(),
		minimumAgePolicy(),
		collateralPolicy(),
	}
}

// dtiCeilingPolicy rejects applications whose debt-to-income ratio
// exceeds the configured ceiling.
func dtiCeilingPolicy() Policy {
	return Policy{
		Name:        "dti-ceiling",
		Description: "Rejects applications whose debt-to-income ratio exceeds the configured ceiling",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"underwriting", "dti"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package losa.underwriting.dti

import rego.v1

deny contains violation if {
	input.derived.dti > input.limits.dti_ceiling
	violation := {
		"message": sprintf("Debt-to-income ratio %.2f exceeds ceiling %.2f", [input.derived.dti, input.limits.dti_ceiling]),
		"severity": "error",
	}
}

# Flag borderline ratios for reviewer attention without blocking.
deny contains violation if {
	input.derived.dti <= input.limits.dti_ceiling
	input.derived.dti > input.limits.dti_ceiling - 0.05
	violation := {
		"message": sprintf("Debt-to-income ratio %.2f is within 0.05 of the ceiling", [input.derived.dti]),
		"severity": "warning",
	}
}`,
	}
}

// productBoundsPolicy enforces per-product amount and term bounds.
func productBoundsPolicy() Policy {
	return Policy{
		Name:        "product-bounds",
		Description: "Enforces per-product principal and term bounds",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"underwriting", "product"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package losa.underwriting.product

import rego.v1

deny contains violation if {
	amount := input.application.loan_details.requested_amount
	amount < input.limits.min_amount
	violation := {
		"message": sprintf("Requested amount %.2f is below the product minimum %.2f", [amount, input.limits.min_amount]),
		"severity": "error",
	}
}

deny contains violation if {
	amount := input.application.loan_details.requested_amount
	amount > input.limits.max_amount
	violation := {
		"message": sprintf("Requested amount %.2f exceeds the product maximum %.2f", [amount, input.limits.max_amount]),
		"severity": "error",
	}
}

deny contains violation if {
	term := input.application.loan_details.requested_term_months
	term > input.limits.max_term_months
	violation := {
		"message": sprintf("Requested term of %d months exceeds the product maximum of %d months", [term, input.limits.max_term_months]),
		"severity": "error",
	}
}`,
	}
}

// minimumAgePolicy rejects applicants below the minimum age.
func minimumAgePolicy() Policy {
	return Policy{
		Name:        "minimum-age",
		Description: "Rejects applicants below the configured minimum age",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"underwriting", "compliance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package losa.underwriting.age

import rego.v1

deny contains violation if {
	input.derived.age < input.limits.min_age
	violation := {
		"message": sprintf("Applicant age %d is below the minimum of %d", [input.derived.age, input.limits.min_age]),
		"severity": "error",
	}
}`,
	}
}

// collateralPolicy requires collateral details on secured products.
func collateralPolicy() Policy {
	return Policy{
		Name:        "collateral-required",
		Description: "Requires collateral details for secured loan products",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"underwriting", "collateral"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package losa.underwriting.collateral

import rego.v1

deny contains violation if {
	input.limits.requires_collateral
	not input.application.loan_details.collateral_description
	violation := {
		"message": "Secured loan requires a collateral description",
		"severity": "error",
	}
}

deny contains violation if {
	input.limits.requires_collateral
	value := object.get(input.application.loan_details, "collateral_value", 0)
	value <= 0
	violation := {
		"message": "Secured loan requires a positive collateral value",
		"severity": "error",
	}
}

# Collateral worth less than the requested amount is a review flag.
deny contains violation if {
	input.limits.requires_collateral
	value := object.get(input.application.loan_details, "collateral_value", 0)
	value > 0
	value < input.application.loan_details.requested_amount
	violation := {
		"message": sprintf("Collateral value %.2f is below the requested amount %.2f", [value, input.application.loan_details.requested_amount]),
		"severity": "warning",
	}
}`,
	}
}

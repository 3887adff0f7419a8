package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/config"
	"github.com/openlosa/losa/pkg/loan"
	"github.com/openlosa/losa/pkg/policy"
)

// validateStage checks the application against the underwriting business
// rules and computes the debt-to-income ratio. It calls no external
// capabilities and therefore never retries.
//
// When a policy engine is attached it owns the age, DTI-ceiling,
// product-bounds and collateral rules, so operators can override them
// with their own Rego; the income-floor and income-consistency rules
// stay native either way. Without a policy engine the full rule set
// runs natively.
type validateStage struct {
	cfg      func() *config.Config
	policies *policy.Engine
	logger   zerolog.Logger
	now      func() time.Time
}

func (s *validateStage) Stage() loan.Stage { return loan.StageValidate }

func (s *validateStage) Execute(ctx context.Context, app *loan.Application) (*StageResult, error) {
	cfg := s.cfg()
	now := s.now()

	dti := app.DebtToIncome()
	changes := []loan.FieldChange{setChange("dti_ratio", fmt.Sprintf("%.4f", dti))}
	app.DTIRatio = dti

	var reasons []string

	// Income rules are always native.
	floor := cfg.IncomeFloorFor(app.Details.RequestedAmount)
	if app.Employment.AnnualIncome < floor {
		reasons = append(reasons, fmt.Sprintf(
			"Annual income %.2f is below the minimum %.2f for the requested amount",
			app.Employment.AnnualIncome, floor))
	}
	if expected := app.Employment.AnnualIncome / 12; expected > 0 {
		deviation := math.Abs(app.Employment.MonthlyIncome-expected) / expected
		if deviation > cfg.Validation.MonthlyIncomeTolerance {
			reasons = append(reasons, fmt.Sprintf(
				"Declared monthly income %.2f is inconsistent with annual income %.2f",
				app.Employment.MonthlyIncome, app.Employment.AnnualIncome))
		}
	}

	if s.policies != nil {
		policyReasons, err := s.evaluatePolicies(ctx, app, cfg, dti, now)
		if err != nil {
			return nil, err
		}
		reasons = append(reasons, policyReasons...)
	} else {
		reasons = append(reasons, s.nativeRules(app, cfg, dti, now)...)
	}

	if len(reasons) > 0 {
		decision := &loan.DecisionRecord{
			ID:               uuid.NewString(),
			Outcome:          loan.OutcomeRejected,
			Confidence:       1.0,
			RejectionReasons: reasons,
			DecidedBy:        systemActor,
			Explanation:      "Application failed validation",
			DecidedAt:        now,
		}
		app.Decision = decision
		changes = append(changes, setChange("decision.outcome", decision.Outcome))
		return &StageResult{
			Intent:           IntentReject,
			Changes:          changes,
			Detail:           fmt.Sprintf("validation failed with %d violation(s)", len(reasons)),
			RejectionReasons: reasons,
		}, nil
	}

	return &StageResult{
		Intent:  IntentAdvance,
		Changes: changes,
		Detail:  "validation passed",
	}, nil
}

// evaluatePolicies runs the Rego policy engine and returns the rejection
// reasons from error-severity violations.
func (s *validateStage) evaluatePolicies(ctx context.Context, app *loan.Application, cfg *config.Config, dti float64, now time.Time) ([]string, error) {
	product, err := cfg.ProductFor(app.Details.Type)
	if err != nil {
		return []string{err.Error()}, nil
	}

	limits := policy.Limits{
		MinAge:             cfg.Validation.MinAge,
		DTICeiling:         cfg.Validation.DTICeiling,
		MinAmount:          product.MinAmount,
		MaxAmount:          product.MaxAmount,
		MaxTermMonths:      product.MaxTermMonths,
		RequiresCollateral: app.Details.Type.Secured(),
	}
	derived := policy.Derived{
		Age: app.Personal.Age(now),
		DTI: dti,
	}

	result, err := s.policies.EvaluateApplication(ctx, app, limits, derived)
	if err != nil {
		return nil, NewPermanentError("policy evaluation failed", err).
			WithApplication(app.ID).
			WithStage(string(s.Stage()))
	}

	for _, warning := range result.Warnings {
		s.logger.Warn().
			Str("application", app.ID).
			Str("warning", warning).
			Msg("Policy evaluation warning")
	}
	for _, v := range result.Violations {
		if v.Severity != policy.SeverityError {
			s.logger.Info().
				Str("application", app.ID).
				Str("policy", v.Policy).
				Str("message", v.Message).
				Msg("Policy flag")
		}
	}

	return result.RejectionReasons(), nil
}

// nativeRules is the in-code rule set used when no policy engine is
// attached. It mirrors the built-in Rego policies.
func (s *validateStage) nativeRules(app *loan.Application, cfg *config.Config, dti float64, now time.Time) []string {
	var reasons []string

	if age := app.Personal.Age(now); age < cfg.Validation.MinAge {
		reasons = append(reasons, fmt.Sprintf(
			"Applicant age %d is below the minimum of %d", age, cfg.Validation.MinAge))
	}
	if dti > cfg.Validation.DTICeiling {
		reasons = append(reasons, fmt.Sprintf(
			"Debt-to-income ratio %.2f exceeds ceiling %.2f", dti, cfg.Validation.DTICeiling))
	}

	product, err := cfg.ProductFor(app.Details.Type)
	if err != nil {
		return append(reasons, err.Error())
	}
	if app.Details.RequestedAmount < product.MinAmount {
		reasons = append(reasons, fmt.Sprintf(
			"Requested amount %.2f is below the product minimum %.2f",
			app.Details.RequestedAmount, product.MinAmount))
	}
	if app.Details.RequestedAmount > product.MaxAmount {
		reasons = append(reasons, fmt.Sprintf(
			"Requested amount %.2f exceeds the product maximum %.2f",
			app.Details.RequestedAmount, product.MaxAmount))
	}
	if app.Details.RequestedTermMonths > product.MaxTermMonths {
		reasons = append(reasons, fmt.Sprintf(
			"Requested term of %d months exceeds the product maximum of %d months",
			app.Details.RequestedTermMonths, product.MaxTermMonths))
	}

	if app.Details.Type.Secured() {
		if app.Details.CollateralDescription == "" {
			reasons = append(reasons, "Secured loan requires a collateral description")
		}
		if app.Details.CollateralValue <= 0 {
			reasons = append(reasons, "Secured loan requires a positive collateral value")
		}
	}

	return reasons
}

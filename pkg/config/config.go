package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openlosa/losa/pkg/loan"
)

// Duration wraps time.Duration so YAML configs can use "30s" style
// values.
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a bare nanosecond
// count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProductRules bounds one loan product.
type ProductRules struct {
	// MinAmount is the smallest principal offered for this product.
	MinAmount float64 `yaml:"min_amount" validate:"gt=0"`

	// MaxAmount is the largest principal offered for this product.
	MaxAmount float64 `yaml:"max_amount" validate:"gt=0,gtefield=MinAmount"`

	// MaxTermMonths caps the repayment term.
	MaxTermMonths int `yaml:"max_term_months" validate:"gte=6,lte=360"`
}

// ValidationRules are the business-rule parameters of the validation stage.
type ValidationRules struct {
	// MinAge is the minimum applicant age in years.
	MinAge int `yaml:"min_age" validate:"gte=18"`

	// DTICeiling is the maximum allowed debt-to-income ratio.
	DTICeiling float64 `yaml:"dti_ceiling" validate:"gt=0,lt=1"`

	// IncomeFloor is the minimum annual income for requests below
	// LargeLoanThreshold.
	IncomeFloor float64 `yaml:"income_floor" validate:"gt=0"`

	// IncomeFloorLarge is the minimum annual income for requests at or
	// above LargeLoanThreshold.
	IncomeFloorLarge float64 `yaml:"income_floor_large" validate:"gt=0"`

	// LargeLoanThreshold separates the two income floors.
	LargeLoanThreshold float64 `yaml:"large_loan_threshold" validate:"gt=0"`

	// MonthlyIncomeTolerance is the allowed relative deviation between
	// declared monthly income and annual income / 12.
	MonthlyIncomeTolerance float64 `yaml:"monthly_income_tolerance" validate:"gt=0,lt=1"`
}

// DocumentRules parameterize the document verification stage.
type DocumentRules struct {
	// IncomeMatchTolerance is the allowed relative deviation between
	// extracted and declared income.
	IncomeMatchTolerance float64 `yaml:"income_match_tolerance" validate:"gt=0,lt=1"`

	// MinConfidence is the minimum per-document analyzer confidence for
	// a document to count as verified.
	MinConfidence float64 `yaml:"min_confidence" validate:"gt=0,lte=1"`
}

// RiskRules parameterize the risk assessment stage.
type RiskRules struct {
	// Thresholds map risk scores to bands.
	Thresholds loan.RiskThresholds `yaml:"thresholds"`

	// AutomatedFloor is the riskiest band the engine may decide without
	// human review. Applications banded riskier than this route to the
	// review queue.
	AutomatedFloor loan.RiskBand `yaml:"automated_floor" validate:"required,oneof=low medium high very_high"`
}

// DecisionRules parameterize the decision stage.
type DecisionRules struct {
	// MinConfidence is the minimum automated-decision confidence.
	// Decisions below it route to human review.
	MinConfidence float64 `yaml:"min_confidence" validate:"gt=0,lte=1"`
}

// EngineRules hold the retry, timeout and concurrency policy.
type EngineRules struct {
	// MaxStageRetries bounds transient-failure retries per stage.
	MaxStageRetries int `yaml:"max_stage_retries" validate:"gte=0,lte=10"`

	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase Duration `yaml:"backoff_base" validate:"gt=0"`

	// BackoffMax caps the retry delay.
	BackoffMax Duration `yaml:"backoff_max" validate:"gt=0"`

	// CapabilityTimeout bounds each capability client call.
	CapabilityTimeout Duration `yaml:"capability_timeout" validate:"gt=0"`

	// StageTimeout bounds total occupancy of one stage. Exceeding it
	// forces the application to Failed.
	StageTimeout Duration `yaml:"stage_timeout" validate:"gt=0"`

	// ReevaluationLimit bounds reload-and-retry cycles after a version
	// conflict within one advance.
	ReevaluationLimit int `yaml:"reevaluation_limit" validate:"gte=1,lte=10"`
}

// PolicyRules configure the underwriting policy engine.
type PolicyRules struct {
	// Enabled toggles policy evaluation in the validation stage.
	Enabled bool `yaml:"enabled"`

	// Paths lists Rego policy files or directories to load in addition
	// to the built-in policies.
	Paths []string `yaml:"paths,omitempty"`
}

// StoreRules configure persistence.
type StoreRules struct {
	// Path is the SQLite database path. Empty selects the in-memory
	// store.
	Path string `yaml:"path,omitempty"`
}

// Config is the full workflow configuration. A loaded Config is immutable;
// reloads produce a fresh value.
type Config struct {
	// Products bounds each loan product. Every loan type must have an
	// entry.
	Products map[loan.LoanType]ProductRules `yaml:"products" validate:"required,dive"`

	Validation ValidationRules `yaml:"validation"`
	Documents  DocumentRules   `yaml:"documents"`
	Risk       RiskRules       `yaml:"risk"`
	Decision   DecisionRules   `yaml:"decision"`
	Engine     EngineRules     `yaml:"engine"`
	Policy     PolicyRules     `yaml:"policy"`
	Store      StoreRules      `yaml:"store"`
}

// Default returns the configuration used when no file is provided. The
// values mirror standard underwriting practice for each product.
func Default() *Config {
	return &Config{
		Products: map[loan.LoanType]ProductRules{
			loan.LoanTypePersonal: {MinAmount: 1000, MaxAmount: 100000, MaxTermMonths: 84},
			loan.LoanTypeAuto:     {MinAmount: 5000, MaxAmount: 150000, MaxTermMonths: 84},
			loan.LoanTypeHome:     {MinAmount: 50000, MaxAmount: 1000000, MaxTermMonths: 360},
			loan.LoanTypeBusiness: {MinAmount: 10000, MaxAmount: 500000, MaxTermMonths: 120},
			loan.LoanTypeStudent:  {MinAmount: 1000, MaxAmount: 200000, MaxTermMonths: 240},
		},
		Validation: ValidationRules{
			MinAge:                 18,
			DTICeiling:             0.43,
			IncomeFloor:            30000,
			IncomeFloorLarge:       50000,
			LargeLoanThreshold:     100000,
			MonthlyIncomeTolerance: 0.10,
		},
		Documents: DocumentRules{
			IncomeMatchTolerance: 0.10,
			MinConfidence:        0.70,
		},
		Risk: RiskRules{
			Thresholds:     loan.RiskThresholds{Low: 80, Medium: 65, High: 45},
			AutomatedFloor: loan.RiskBandMedium,
		},
		Decision: DecisionRules{
			MinConfidence: 0.70,
		},
		Engine: EngineRules{
			MaxStageRetries:   3,
			BackoffBase:       Duration(500 * time.Millisecond),
			BackoffMax:        Duration(time.Minute),
			CapabilityTimeout: Duration(10 * time.Second),
			StageTimeout:      Duration(2 * time.Minute),
			ReevaluationLimit: 3,
		},
		Policy: PolicyRules{
			Enabled: true,
		},
	}
}

// Load reads the configuration file at path, layered over defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, t := range []loan.LoanType{
		loan.LoanTypePersonal, loan.LoanTypeAuto, loan.LoanTypeHome,
		loan.LoanTypeBusiness, loan.LoanTypeStudent,
	} {
		if _, ok := c.Products[t]; !ok {
			return fmt.Errorf("invalid configuration: no product rules for loan type %s", t)
		}
	}
	if err := c.Risk.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Risk.AutomatedFloor.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Validation.IncomeFloorLarge < c.Validation.IncomeFloor {
		return fmt.Errorf("invalid configuration: income_floor_large below income_floor")
	}
	if c.Engine.BackoffMax < c.Engine.BackoffBase {
		return fmt.Errorf("invalid configuration: backoff_max below backoff_base")
	}
	return nil
}

// ProductFor returns the product rules for a loan type.
func (c *Config) ProductFor(t loan.LoanType) (ProductRules, error) {
	rules, ok := c.Products[t]
	if !ok {
		return ProductRules{}, fmt.Errorf("no product rules for loan type %s", t)
	}
	return rules, nil
}

// IncomeFloorFor returns the annual income floor that applies to the
// requested amount.
func (c *Config) IncomeFloorFor(requestedAmount float64) float64 {
	if requestedAmount >= c.Validation.LargeLoanThreshold {
		return c.Validation.IncomeFloorLarge
	}
	return c.Validation.IncomeFloor
}

package loan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator = newValidator()

	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	phonePattern = regexp.MustCompile(`^\+?1?\d{10}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Pattern checks the tag grammar cannot express.
	_ = v.RegisterValidation("ssn", func(fl validator.FieldLevel) bool {
		return ssnPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("us_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("us_zip", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStructure checks the application's structural validity: required
// sections present, field formats and ranges respected. This is the intake
// precondition; business rules (product bounds, DTI, income floors) are
// the validation stage's job and are not checked here.
func ValidateStructure(app *Application) error {
	if app == nil {
		return fmt.Errorf("application is nil")
	}
	if err := structValidator.Struct(app); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return fmt.Errorf("validating application: %w", err)
		}
		msgs := make([]string, 0, len(fields))
		for _, fe := range fields {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid application: %s", strings.Join(msgs, "; "))
	}
	return nil
}

package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct checks the `validate` tags of s and turns failures into a single
// apperr.ErrValidation whose message lists the offending fields.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: %s", apperr.ErrValidation, describe(ve))
}

func Email(email string) error {
	if err := v.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email must be a valid email address", apperr.ErrValidation)
	}
	return nil
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, strings.ToLower(e.Field())+" "+message(e))
	}
	return strings.Join(parts, ", ")
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "eqfield":
		return "must match " + strings.ToLower(e.Param())
	default:
		return "is invalid"
	}
}

// Echo adapts the package validator to echo.Validator.
type Echo struct{}

func (Echo) Validate(i any) error { return Struct(i) }

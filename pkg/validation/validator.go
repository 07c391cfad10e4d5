// Package validation wraps go-playground/validator so struct tag failures
// surface as AppError values with a readable field list.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

var validate = validator.New()

// Struct validates s against its `validate` tags. Failures are returned as
// an AppError with the given code; the detail lists each offending field.
func Struct(s interface{}, code errors.ErrorCode) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, code, "validation failed")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(code, "validation failed").WithDetail(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

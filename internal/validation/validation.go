// Package validation runs go-playground struct validation and reports
// failures as domain validation errors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Struct validates dest. The first failing field (alphabetically) becomes the
// error's Field; every failure is listed in Details.
func Struct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.ValidationError{Reason: err.Error()}
	}

	details := make(map[string]any, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = message(fe)
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return &domain.ValidationError{
		Field:   fields[0],
		Reason:  details[fields[0]].(string),
		Details: details,
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid", "uuid4":
		return "must be a UUID"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	}
	return "is invalid"
}

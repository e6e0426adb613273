// Package validation binds and validates request bodies with
// go-playground/validator, reporting every violation.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// MetaViolations is the httperror meta key holding the violation list.
const MetaViolations = "violations"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// BindRequest decodes the request body into T and validates it. Failures are
// 400 httperrors; validation failures carry every violation in their meta.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON")
	}

	if err := Validate(v); err != nil {
		return v, err
	}

	return v, nil
}

// Validate checks value against its validate tags.
func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	violations := Violations(err)
	if len(violations) == 0 {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	return httperror.NewHTTPError(http.StatusBadRequest, "validation failed").AddMetaValue(MetaViolations, violations)
}

// Violations renders validator errors as readable messages keyed by JSON field path.
func Violations(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed rule '%s' (expected '%s', got '%v')", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// Package utils provides small helpers shared by the ssoguard packages.
package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/ssoguard/pkg/errors"
)

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return defaultValidator
}

// ValidateStruct validates a struct using the shared validator.
// Field failures are reported as invalid_request metadata keyed by snake_case field path.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrInvalidRequest(err.Error())
	}

	details := make(map[string]string, len(validationErrors))
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		name := fieldPath(fe)
		details[name] = formatValidationError(fe)
		msgs = append(msgs, name+" "+details[name])
	}
	return errors.ErrInvalidRequest("validation failed: "+strings.Join(msgs, "; ")).
		WithCause(err).
		WithMetadata("fields", details)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = toSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "required_if":
		return fmt.Sprintf("is required when %s", fe.Param())
	case "hostname_port":
		return "must be a host:port pair"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// toSnakeCase converts a string from CamelCase to snake_case.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

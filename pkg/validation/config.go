package validation

import (
	"errors"
	"fmt"
	"math"
)

// FieldError describes one invalid configuration parameter.
type FieldError struct {
	Config string // config struct name, e.g. "pageRank"
	Field  string // parameter name as the caller spells it
	Value  any    // offending value
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: value %v %s", e.Config, e.Field, e.Value, e.Reason)
}

// ErrInvalidConfig is matched by every error returned from Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Is lets errors.Is(err, ErrInvalidConfig) match field errors.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ConfigValidator provides a fluent interface for validating configuration values.
// It collects all validation errors rather than failing on the first one.
type ConfigValidator struct {
	errors []*FieldError
	name   string
}

// NewConfigValidator creates a new config validator with the given config name.
func NewConfigValidator(configName string) *ConfigValidator {
	return &ConfigValidator{name: configName}
}

func (cv *ConfigValidator) fail(field string, value any, reason string, args ...any) *ConfigValidator {
	cv.errors = append(cv.errors, &FieldError{
		Config: cv.name,
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf(reason, args...),
	})
	return cv
}

// RangeInt validates that an int field is within [min, max].
func (cv *ConfigValidator) RangeInt(field string, value, min, max int) *ConfigValidator {
	if value < min || value > max {
		return cv.fail(field, value, "is outside range [%d, %d]", min, max)
	}
	return cv
}

// Positive validates that an int field is > 0.
func (cv *ConfigValidator) Positive(field string, value int) *ConfigValidator {
	if value <= 0 {
		return cv.fail(field, value, "must be positive")
	}
	return cv
}

// NonNegative validates that an int field is >= 0.
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	if value < 0 {
		return cv.fail(field, value, "must be non-negative")
	}
	return cv
}

// Finite validates that a float field is neither NaN nor infinite.
func (cv *ConfigValidator) Finite(field string, value float64) *ConfigValidator {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return cv.fail(field, value, "must be a finite number")
	}
	return cv
}

// NonNegativeFloat validates that a float field is finite and >= 0.
func (cv *ConfigValidator) NonNegativeFloat(field string, value float64) *ConfigValidator {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return cv.fail(field, value, "must be a finite non-negative number")
	}
	return cv
}

// OpenRangeFloat validates that min < value < max.
func (cv *ConfigValidator) OpenRangeFloat(field string, value, min, max float64) *ConfigValidator {
	if math.IsNaN(value) || value <= min || value >= max {
		return cv.fail(field, value, "must be in the open interval (%g, %g)", min, max)
	}
	return cv
}

// Names validates every entry of a token name list.
func (cv *ConfigValidator) Names(field string, values []string) *ConfigValidator {
	for _, v := range values {
		if err := ValidateTokenName(v); err != nil {
			cv.fail(field, fmt.Sprintf("%q", v), "%v", err)
		}
	}
	return cv
}

// PropertyKey validates an optional property key; empty means unset.
func (cv *ConfigValidator) PropertyKey(field, value string) *ConfigValidator {
	if value == "" {
		return cv
	}
	if err := ValidatePropertyKey(value); err != nil {
		return cv.fail(field, fmt.Sprintf("%q", value), "%v", err)
	}
	return cv
}

// Custom applies a custom validation function.
func (cv *ConfigValidator) Custom(field string, value any, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		return cv.fail(field, value, "%v", err)
	}
	return cv
}

// When conditionally applies validations if the condition is true.
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// Merge appends the field errors found in err (as returned by Struct).
func (cv *ConfigValidator) Merge(err error) *ConfigValidator {
	if err == nil {
		return cv
	}
	cv.errors = append(cv.errors, FieldErrors(err)...)
	return cv
}

// Validate returns every collected error joined, or nil.
func (cv *ConfigValidator) Validate() error {
	if len(cv.errors) == 0 {
		return nil
	}
	errs := make([]error, len(cv.errors))
	for i, e := range cv.errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// FieldErrors extracts the FieldErrors contained in err, following both
// single and joined wrapping.
func FieldErrors(err error) []*FieldError {
	switch e := err.(type) {
	case nil:
		return nil
	case *FieldError:
		return []*FieldError{e}
	case interface{ Unwrap() []error }:
		var out []*FieldError
		for _, inner := range e.Unwrap() {
			out = append(out, FieldErrors(inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return FieldErrors(e.Unwrap())
	}
	return nil
}

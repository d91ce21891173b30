package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxTokenLength = 64
	MaxPropertyKey = 100

	tokenPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	propKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func init() {
	validate = validator.New()
	// Report parameters by their yaml names so messages match the config file.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

// Struct validates v against its `validate` struct tags and converts the
// result to FieldErrors under configName.
func Struct(configName string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	cv := NewConfigValidator(configName)
	for _, e := range validationErrs {
		cv.fail(e.Field(), e.Value(), "%s", describeTag(e))
	}
	return cv.Validate()
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must not exceed " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "oneof":
		return "must be one of [" + e.Param() + "]"
	case "dive":
		return "contains an invalid element"
	default:
		return fmt.Sprintf("failed validation (%s)", e.Tag())
	}
}

// ValidateTokenName validates a label or relationship type name
func ValidateTokenName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > MaxTokenLength {
		return fmt.Errorf("name '%s' exceeds maximum length of %d characters", name, MaxTokenLength)
	}
	if !tokenPattern.MatchString(name) {
		return fmt.Errorf("name '%s' contains invalid characters (only alphanumeric and underscore allowed)", name)
	}
	return nil
}

// ValidatePropertyKey validates a property key
func ValidatePropertyKey(key string) error {
	if key == "" {
		return errors.New("property key cannot be empty")
	}
	if len(key) > MaxPropertyKey {
		return fmt.Errorf("property key '%s' exceeds maximum length of %d characters", key, MaxPropertyKey)
	}
	if !propKeyPattern.MatchString(key) {
		return fmt.Errorf("property key '%s' is invalid (must start with letter or underscore, followed by alphanumeric or underscore)", key)
	}
	return nil
}

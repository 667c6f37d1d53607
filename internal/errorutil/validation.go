package errorutil

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field       string
	Value       interface{}
	Rule        string
	Message     string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed for field '%s' with rule '%s'", e.Field, e.Rule)
}

// ValidationErrors collects several validation failures
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), e.Errors[0].Error())
}

// Add appends a validation failure
func (e *ValidationErrors) Add(field, rule, message string, value interface{}, suggestions ...string) {
	e.Errors = append(e.Errors, ValidationError{
		Field:       field,
		Value:       value,
		Rule:        rule,
		Message:     message,
		Suggestions: suggestions,
	})
}

// Append adds err when it is non-nil
func (e *ValidationErrors) Append(err *ValidationError) {
	if err != nil {
		e.Errors = append(e.Errors, *err)
	}
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// LogValidationErrors logs each failure as a warning
func LogValidationErrors(logger *slog.Logger, valErr *ValidationErrors) *ValidationErrors {
	if logger == nil || !valErr.HasErrors() {
		return valErr
	}

	for _, err := range valErr.Errors {
		attrs := []slog.Attr{
			slog.String("field", err.Field),
			slog.String("rule", err.Rule),
			slog.String("message", err.Message),
			slog.Any("value", err.Value),
		}
		if len(err.Suggestions) > 0 {
			attrs = append(attrs, slog.Any("suggestions", err.Suggestions))
		}
		logger.Warn("Validation error", toAny(attrs)...)
	}
	return valErr
}

// ValidateRequired checks if a field has a non-empty value
func ValidateRequired(field string, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "required",
			Message: "field is required and cannot be empty",
		}
	}
	return nil
}

// ValidateRange checks if a numeric value is within a specified range
func ValidateRange(field string, value float64, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "range",
			Message: fmt.Sprintf("value must be between %.2f and %.2f, got %.2f", min, max, value),
			Suggestions: []string{
				fmt.Sprintf("Try a value between %.2f and %.2f", min, max),
			},
		}
	}
	return nil
}

// ValidateIntRange checks if an integer value is within a specified range
func ValidateIntRange(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "int_range",
			Message: fmt.Sprintf("value must be between %d and %d, got %d", min, max, value),
			Suggestions: []string{
				fmt.Sprintf("Try a value between %d and %d", min, max),
			},
		}
	}
	return nil
}

// ValidateEnum checks if a value is one of the allowed values (case-insensitive)
func ValidateEnum(field string, value string, allowedValues []string) *ValidationError {
	value = strings.TrimSpace(strings.ToLower(value))
	for _, allowed := range allowedValues {
		if strings.ToLower(allowed) == value {
			return nil
		}
	}

	return &ValidationError{
		Field:       field,
		Value:       value,
		Rule:        "enum",
		Message:     fmt.Sprintf("value must be one of: %s, got '%s'", strings.Join(allowedValues, ", "), value),
		Suggestions: allowedValues,
	}
}

// ValidateURL checks for an absolute http(s) URL
func ValidateURL(field string, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return ValidateRequired(field, value)
	}

	u, err := url.Parse(value)
	if err == nil && (u.Scheme != "http" && u.Scheme != "https" || u.Host == "") {
		err = fmt.Errorf("expected an absolute http or https URL")
	}
	if err != nil {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "url",
			Message: fmt.Sprintf("invalid URL format: %v", err),
			Suggestions: []string{
				"Ensure URL starts with http:// or https://",
				"Check for typos in the URL",
			},
		}
	}
	return nil
}

// ValidateCoordinate checks if a coordinate is within valid range
func ValidateCoordinate(field string, value float64, isLatitude bool) *ValidationError {
	min, max, coordType := -180.0, 180.0, "longitude"
	if isLatitude {
		min, max, coordType = -90.0, 90.0, "latitude"
	}

	if math.IsNaN(value) || value < min || value > max {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Rule:    "coordinate",
			Message: fmt.Sprintf("%s must be between %.1f and %.1f, got %.6f", coordType, min, max, value),
			Suggestions: []string{
				fmt.Sprintf("Valid %s range is %.1f to %.1f", coordType, min, max),
				"Check coordinate format (decimal degrees)",
			},
		}
	}
	return nil
}

// ParseCoordinate parses a decimal-degree query value and range checks it
func ParseCoordinate(field string, raw string, isLatitude bool) (float64, *ValidationError) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ValidationError{
			Field:   field,
			Value:   raw,
			Rule:    "number",
			Message: "value must be a decimal number",
			Suggestions: []string{
				"Use decimal degrees (e.g., 40.7128, -74.006)",
			},
		}
	}
	if verr := ValidateCoordinate(field, value, isLatitude); verr != nil {
		return 0, verr
	}
	return value, nil
}

// ValidateAPIKey checks if an API key has a reasonable format
func ValidateAPIKey(field string, value string, minLength int) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Value:   "[REDACTED]",
			Rule:    "required",
			Message: "API key is required",
			Suggestions: []string{
				"Obtain API key from the service provider",
				"Check configuration file for missing key",
			},
		}
	}

	if len(value) < minLength {
		return &ValidationError{
			Field:   field,
			Value:   "[REDACTED]",
			Rule:    "min_length",
			Message: fmt.Sprintf("API key too short, expected at least %d characters", minLength),
			Suggestions: []string{
				"Verify complete API key was copied",
			},
		}
	}

	placeholders := []string{
		"your-api-key-here",
		"your-key-here",
		"replace-with-your-key",
	}
	lowerValue := strings.ToLower(value)
	for _, placeholder := range placeholders {
		if strings.Contains(lowerValue, placeholder) {
			return &ValidationError{
				Field:   field,
				Value:   "[REDACTED]",
				Rule:    "placeholder",
				Message: "API key appears to be a placeholder value",
				Suggestions: []string{
					"Replace placeholder with actual API key",
				},
			}
		}
	}
	return nil
}

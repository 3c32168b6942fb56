// Package validation checks job variables and API bodies against the JSON
// schemas declared in the task registry.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateJSON validates a raw JSON string against schema.
func ValidateJSON(schema map[string]interface{}, raw string) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Summary joins all messages for error details.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether email is a single well-formed address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePushEndpoint accepts only absolute https URLs.
func ValidatePushEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}

package validator

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ValidationError - Errors for tags validation.
type ValidationError struct {
	errors []*ValidationErrorResponse
}

// ValidationErrorResponse - Struct for the validation error.
type ValidationErrorResponse struct {
	FailedField string `json:"failedField"`
	Tag         string `json:"tag"`
	Value       string `json:"value,omitempty"`
}

func (r *ValidationErrorResponse) String() string {
	if r.Value == "" {
		return fmt.Sprintf("%s (%s)", r.FailedField, r.Tag)
	}

	return fmt.Sprintf("%s (%s=%s)", r.FailedField, r.Tag, r.Value)
}

// NewValidationError - ValidationError constructor.
func NewValidationError(errors []*ValidationErrorResponse) *ValidationError {
	return &ValidationError{errors: errors}
}

// Error lists the failed fields, e.g. "invalid fields: BaseConfig.mongodb.connection (required)".
func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.errors))
	for _, e := range v.errors {
		fields = append(fields, e.String())
	}

	return "invalid fields: " + strings.Join(fields, ", ")
}

// MarshalJSON encodes the failed fields as a JSON array.
func (v *ValidationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.errors)
}

// GetErrorsDetails - return the errors.
func (v *ValidationError) GetErrorsDetails() []*ValidationErrorResponse {
	return v.errors
}

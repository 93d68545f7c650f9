//nolint:gochecknoglobals
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator - Validator type.
type Validator struct {
	validate *validator.Validate
}

var (
	validatorInstance *Validator
	once              sync.Once
)

// NewValidator - Create a new Validator (singleton).
// Failed fields are reported with their configuration key (mapstructure or yaml tag) when the
// struct declares one, so messages point at the property file or migration file entry.
func NewValidator() *Validator {
	once.Do(func() {
		validate := validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldKey)
		validatorInstance = &Validator{validate: validate}
	})

	return validatorInstance
}

func fieldKey(field reflect.StructField) string {
	for _, tag := range []string{"mapstructure", "yaml"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return field.Name
}

// ValidateStruct - apply validation and return one entry per failed field.
func (v *Validator) ValidateStruct(str any) []*ValidationErrorResponse {
	var failures []*ValidationErrorResponse

	var validationErrors validator.ValidationErrors
	if err := v.validate.Struct(str); errors.As(err, &validationErrors) {
		for _, fe := range validationErrors {
			failures = append(failures, &ValidationErrorResponse{
				FailedField: fe.Namespace(),
				Tag:         fe.Tag(),
				Value:       fe.Param(),
			})
		}
	}

	return failures
}

// Validate - apply validation and return a *ValidationError, or nil when str is valid.
func (v *Validator) Validate(str any) error {
	if errs := v.ValidateStruct(str); len(errs) > 0 {
		return NewValidationError(errs)
	}

	return nil
}

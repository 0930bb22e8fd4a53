package app

import (
	"github.com/go-playground/validator/v10"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and wraps failures as
// domain.ValidationError.
func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return &domain.ValidationError{Err: err}
	}
	return nil
}

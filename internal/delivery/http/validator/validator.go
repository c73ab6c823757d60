// Package validator adapts go-playground/validator to Echo's Validator interface.
package validator

import (
	domainerrors "passport/internal/domain/errors"

	"github.com/go-playground/validator/v10"
)

// echoValidator wraps a validator instance for Echo request binding.
type echoValidator struct {
	validate *validator.Validate
}

// New creates the Echo request validator.
func New() *echoValidator {
	return &echoValidator{validate: validator.New()}
}

// Validate implements echo.Validator. Validation failures map to the domain
// validation error so the error handler renders a consistent 400 payload.
func (v *echoValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage(err.Error())
	}

	return nil
}

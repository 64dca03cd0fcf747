package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewConfigValidationFieldRequiredError is used when a required configuration field is missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return errors.Errorf("error validating %q: %q is required", path, field)
}

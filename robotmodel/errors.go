package robotmodel

import "github.com/pkg/errors"

// NewUnknownJointError returns an error indicating the model has no joint with the given name.
func NewUnknownJointError(model, joint string) error {
	return errors.Errorf("joint %q not found in robot model %q", joint, model)
}

// NewUnknownVariableError returns an error indicating the model has no variable with the given name.
func NewUnknownVariableError(model, variable string) error {
	return errors.Errorf("variable %q not found in robot model %q", variable, model)
}

// NewUnknownGroupError returns an error indicating the model has no joint model group with the given name.
func NewUnknownGroupError(model, group string) error {
	return errors.Errorf("joint model group %q not found in robot model %q", group, model)
}

// NewDuplicateJointError returns an error indicating that a joint name appears twice.
func NewDuplicateJointError(joint string) error {
	return errors.Errorf("cannot add joint %q, a joint with that name already exists", joint)
}

// NewReservedWordError returns an error indicating a reserved word was used as a name.
func NewReservedWordError(configType, reservedWord string) error {
	return errors.Errorf("reserved word: cannot name a %s '%s'", configType, reservedWord)
}

// NewIncorrectDoFError returns an error indicating that the length of an input slice does not
// match the degrees of freedom it describes.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match degrees of freedom. Expected %d, got %d", expected, actual)
}

package model

import (
	"errors"
	"strings"
)

// ErrParametersRequired matches every MissingParametersError.
var ErrParametersRequired = errors.New("parameters required")

// MissingParametersError lists all required parameters that were absent, in schema order.
type MissingParametersError struct {
	Parameters []Parameter
}

func (e *MissingParametersError) Error() string {
	labels := make([]string, 0, len(e.Parameters))
	for _, p := range e.Parameters {
		labels = append(labels, p.String())
	}
	return ErrParametersRequired.Error() + ": " + strings.Join(labels, ", ")
}

// Is reports whether target is ErrParametersRequired.
func (e *MissingParametersError) Is(target error) bool {
	return target == ErrParametersRequired
}

// Validate checks the DTO against the required parameters of the schema. All missing
// parameters are reported in a single error.
func Validate(dto *DTO) error {
	var missing []Parameter
	for _, b := range schema {
		p := b.Parameter()
		if p.Required() && !b.present(dto) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &MissingParametersError{Parameters: missing}
	}
	return nil
}

// ValidateContact applies the same rules to a contact that is about to be stored.
func ValidateContact(c Contact) error {
	return Validate(DTOFromContact(c))
}

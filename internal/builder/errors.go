package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTemplate is returned when a template cannot be parsed or is
	// internally inconsistent.
	ErrInvalidTemplate = errors.New("invalid geometry template")

	// ErrMissingParameter is matched by *MissingParameterError.
	ErrMissingParameter = errors.New("missing scan parameter")

	// ErrInvalidParameter is matched by *InvalidParameterError.
	ErrInvalidParameter = errors.New("invalid scan parameter")
)

// MissingParameterError reports a placeholder the parameters do not provide.
type MissingParameterError struct {
	Key string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing scan parameter %q", e.Key)
}

// Is makes errors.Is(err, ErrMissingParameter) match.
func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingParameter
}

// InvalidParameterError reports a parameter value outside its allowed domain,
// either directly or through a value derived from it.
type InvalidParameterError struct {
	// Name is the offending parameter, or the template attribute when the
	// offending value does not depend on any parameter.
	Name string

	// Value is the parameter value (or the evaluated attribute value).
	Value float64

	// Constraint describes the violated rule.
	Constraint string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid scan parameter %s=%g: %s", e.Name, e.Value, e.Constraint)
}

// Is makes errors.Is(err, ErrInvalidParameter) match.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func invalidTemplate(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidTemplate, name, fmt.Sprintf(format, args...))
}

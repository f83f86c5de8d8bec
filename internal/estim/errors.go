package estim

import (
	"errors"
	"fmt"
)

// Domain errors for estimability operations.
var (
	// ErrConfiguration indicates missing or invalid user input such as scaling
	// maps, parameter names or an absent ranking.
	ErrConfiguration = errors.New("estim: configuration error")

	// ErrInvalidInput indicates a matrix argument that is not a usable 2-D
	// numeric matrix.
	ErrInvalidInput = errors.New("estim: invalid input")

	// ErrSingular indicates a non-invertible normal matrix during ranking.
	ErrSingular = errors.New("estim: singular matrix")

	// ErrSolver indicates the nonlinear solver failed.
	ErrSolver = errors.New("estim: solver failure")
)

// AnalysisError wraps an error with the operation and parameter involved.
type AnalysisError struct {
	Op      string
	Param   string
	Wrapped error
}

func (e *AnalysisError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Param, e.Wrapped)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
}

func (e *AnalysisError) Unwrap() error {
	return e.Wrapped
}

// Configf builds a configuration error for op.
func Configf(op, format string, args ...any) error {
	return &AnalysisError{Op: op, Wrapped: fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))}
}

// Inputf builds an invalid-input error for op.
func Inputf(op, format string, args ...any) error {
	return &AnalysisError{Op: op, Wrapped: fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))}
}

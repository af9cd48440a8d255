package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound = errors.New("resource not found")

	// Input errors
	ErrInvalidSeries    = errors.New("invalid dose-response series")
	ErrMissingColumn    = errors.New("missing required column")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Model errors
	ErrUnknownModel = fmt.Errorf("%w: model", ErrNotFound)
)

// NewSeriesError reports a series that violates its structural invariants.
func NewSeriesError(unit string, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidSeries, unit, reason)
}

// NewMissingColumnError reports a required input column that is absent.
func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

// NewUnknownModelError reports a model name that is not in the registry.
func NewUnknownModelError(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownModel, name)
}

// IsInputError reports whether err stems from malformed input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidSeries) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrInsufficientData)
}

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder is returned for negative orders or a seasonal
	// component without a usable period.
	ErrInvalidOrder = errors.New("invalid model order")

	// ErrInsufficientData is wrapped by ConvergenceError when differencing
	// and conditioning leave too few observations to estimate the model.
	ErrInsufficientData = errors.New("insufficient observations for the specified order")

	// ErrDegenerateFit is wrapped by ConvergenceError when the optimum leaves
	// no residual variance, e.g. for a constant series, so the coefficients
	// are not identified.
	ErrDegenerateFit = errors.New("degenerate fit: zero residual variance")

	// ErrInvalidHorizon is returned for a forecast horizon below one step.
	ErrInvalidHorizon = errors.New("forecast horizon must be at least 1")

	// ErrInvalidArtifact is returned when an artifact's fields are
	// inconsistent with its orders.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// ConvergenceError reports a fit that did not produce an accepted optimum.
// Status is the optimizer's termination status ("" when the optimizer never
// ran, e.g. for insufficient data, or when its optimum was rejected).
type ConvergenceError struct {
	Model       string
	Status      string
	Iterations  int
	Evaluations int
	Err         error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("%s did not converge", e.Model)
	if e.Status != "" {
		msg += fmt.Sprintf(" (status %s after %d iterations, %d evaluations)", e.Status, e.Iterations, e.Evaluations)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConvergenceError) Unwrap() error {
	return e.Err
}

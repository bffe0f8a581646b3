package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when ingestion leaves no usable curve.
	ErrNoData = errors.New("no valid data loaded")

	// ErrInsufficientData is returned when a fit is requested with fewer
	// than two non-reference temperatures.
	ErrInsufficientData = errors.New("insufficient data: need at least 2 non-reference temperatures")

	// ErrUnknownTemperature is returned when a manual override targets a
	// temperature that is not a key of the dataset.
	ErrUnknownTemperature = errors.New("unknown temperature")

	// ErrInvalidShiftFactor is returned when a manual log aT does not map
	// to a finite, strictly positive aT.
	ErrInvalidShiftFactor = errors.New("shift factor must be finite and positive")

	// ErrFitConvergence is returned when a solver fails to converge within
	// its iteration cap or hits a singular step.
	ErrFitConvergence = errors.New("fit did not converge")

	// ErrNoShiftComputed is returned when effective factors are requested
	// before any shift model has been run.
	ErrNoShiftComputed = errors.New("no shift computed")

	// ErrNoOverlap is returned when two adjacent curves share no frequency
	// window after shifting, so no empirical shift can be estimated.
	ErrNoOverlap = errors.New("curves do not overlap")
)

// FitError records why a requested fit was abandoned. The shift that
// carried it still completed with the supplied constants.
type FitError struct {
	Model string
	Err   error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s fit: %v", e.Model, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

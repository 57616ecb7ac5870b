package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks requests rejected before any work starts.
	ErrValidation = errors.New("validation error")
	// ErrIneligible matches every *IneligibleError.
	ErrIneligible = errors.New("vehicle ineligible")
	// ErrDependencyUnavailable wraps failures of the store or the geo estimator.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// IneligibleReason explains why a vehicle cannot take an order.
type IneligibleReason string

const (
	IneligibleUnavailable IneligibleReason = "unavailable"
	IneligibleCapacity    IneligibleReason = "insufficient_capacity"
	IneligibleVolume      IneligibleReason = "insufficient_volume"
	IneligibleMissionCap  IneligibleReason = "too_many_missions"
)

// IneligibleError reports a vehicle failing the eligibility filter.
type IneligibleError struct {
	VehicleID string
	Reason    IneligibleReason
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("vehicle %s ineligible: %s", e.VehicleID, e.Reason)
}

func (e *IneligibleError) Is(target error) bool { return target == ErrIneligible }

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func dependencyErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientPatients = fmt.Errorf("%w: at least two patients are required", ErrInvalidInput)
	ErrLengthMismatch       = fmt.Errorf("%w: feature rows and labels differ in length", ErrInvalidInput)
	ErrDuplicatePatient     = fmt.Errorf("%w: duplicate patient id", ErrInvalidInput)
	ErrShapeMismatch        = fmt.Errorf("%w: feature matrices disagree on column count", ErrInvalidInput)
	ErrUnknownLabel         = fmt.Errorf("%w: label outside the binarization pair", ErrInvalidInput)

	// Protocol errors
	ErrLeakage = errors.New("data leakage detected")

	// Projection errors
	ErrProjection        = errors.New("projection failed")
	ErrRankDeficient     = fmt.Errorf("%w: requested dimensionality exceeds training rank", ErrProjection)
	ErrDimensionality    = fmt.Errorf("%w: dimensionality mismatch", ErrProjection)
	ErrUnsupportedKernel = fmt.Errorf("%w: unsupported kernel", ErrProjection)

	// Classifier errors
	ErrClassifierFailed = errors.New("classifier failed")
	ErrNotConverged     = fmt.Errorf("%w: optimizer did not converge", ErrClassifierFailed)
	ErrUnknownFamily    = errors.New("unknown classifier family")

	// Aggregation integrity errors
	ErrAggregateIntegrity = errors.New("aggregate integrity violated")
	ErrAggregateGap       = fmt.Errorf("%w: missing entry", ErrAggregateIntegrity)
	ErrOutOfOrder         = fmt.Errorf("%w: entry out of order", ErrAggregateIntegrity)

	// Determinism errors
	ErrHashMismatch = errors.New("hash mismatch")
)

// NewValidationError describes a rejected field.
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// NewLeakageError reports a held-out patient found in its own training pool.
func NewLeakageError(patient string, fold int) error {
	return fmt.Errorf("%w: patient %s present in training pool of fold %d", ErrLeakage, patient, fold)
}

// IsValidationError reports whether err is an input-validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsProjectionError reports whether err came from the projection step.
func IsProjectionError(err error) bool {
	return errors.Is(err, ErrProjection)
}

// IsClassifierError reports whether err came from a classifier capability.
func IsClassifierError(err error) bool {
	return errors.Is(err, ErrClassifierFailed)
}

// IsIntegrityError reports whether err signals a malformed aggregate.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrAggregateIntegrity)
}

// RankError reports a requested dimensionality above the numerical rank of
// the training data.
type RankError struct {
	Requested int
	Available int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("%s: requested %d components, training rank is %d",
		ErrRankDeficient.Error(), e.Requested, e.Available)
}

func (e *RankError) Unwrap() error { return ErrRankDeficient }

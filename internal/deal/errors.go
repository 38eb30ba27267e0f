package deal

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a command wraps exactly one of
// these, so callers can map failures with errors.Is. A failed command never
// leaves partial state behind: commands validate first, mutate last.
var (
	// ErrValidation covers bad caller input: non-positive quantities,
	// inverted date ranges, missing counter-proposals, empty reasons.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition is returned when the entity's current status does
	// not permit the requested operation.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrReferential is returned when a cross-entity reference does not
	// validate or does not resolve.
	ErrReferential = errors.New("referential integrity violation")

	// ErrConsistency is returned when an operation would violate a ledger
	// invariant, such as committing volume past the requirement total.
	ErrConsistency = errors.New("consistency violation")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the acting party does not own the entity
	// or lacks the role the operation requires.
	ErrForbidden = errors.New("operation not permitted for this actor")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionf(entity, id string, from fmt.Stringer, op string) error {
	return fmt.Errorf("%w: %s %s in status %q does not allow %s", ErrIllegalTransition, entity, id, from.String(), op)
}

func referentialf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReferential, fmt.Sprintf(format, args...))
}

func consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

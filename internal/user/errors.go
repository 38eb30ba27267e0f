package user

import (
	"fmt"

	"github.com/reciclo/broker/internal/deal"
)

// This package reuses the deal error taxonomy so handlers map every domain
// failure to an HTTP status the same way.

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", deal.ErrValidation, fmt.Sprintf(format, args...))
}

func consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", deal.ErrConsistency, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", deal.ErrNotFound, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", deal.ErrForbidden, fmt.Sprintf(format, args...))
}

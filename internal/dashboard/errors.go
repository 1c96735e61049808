package dashboard

import "errors"

var (
	// ErrValidation reports bad input to a constructor or operation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound reports an operation on a missing widget or dashboard.
	ErrNotFound = errors.New("not found")
	// ErrMalformedDocument reports an import document missing required fields.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrInvariantViolation reports a layout that breaks the widget/rectangle
	// bijection, leaves the grid, or overlaps.
	ErrInvariantViolation = errors.New("invariant violation")
)

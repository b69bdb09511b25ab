package booking

import "errors"

var (
	// ErrBusinessNotFound indicates the assistant number resolves to no
	// known tenant. Nothing is written when this is returned.
	ErrBusinessNotFound = errors.New("booking: business not found")

	// ErrEmployeeNotFound indicates the requested employee is not in the
	// business roster. Nothing is written when this is returned.
	ErrEmployeeNotFound = errors.New("booking: employee not found")
)

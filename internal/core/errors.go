package core

import "errors"

// Error taxonomy. The HTTP layer maps these to status codes, everything
// else is reported as an internal error.
var (
	ErrUnauthorized = errors.New("unknown session")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

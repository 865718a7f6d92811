package booking

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("booking conflict")
	ErrForbidden    = errors.New("forbidden")
)

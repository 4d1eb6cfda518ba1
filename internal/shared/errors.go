package shared

import "errors"

var (
	// ErrNotFound indicates the row does not exist or belongs to another shop.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed or incomplete request.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a lost race the caller may retry.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

package domain

import "github.com/pkg/errors"

// Sentinels for the error taxonomy. Callers wrap these with context and
// the API layer maps them to status codes with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("an export job is already pending for this user")
	ErrNotFound      = errors.New("not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrExpired       = errors.New("export has expired")
	ErrNotComplete   = errors.New("export is not complete")
	ErrNotCancelable = errors.New("only pending exports can be cancelled")
)

package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyPaired   = errors.New("user already has an active relationship")
	ErrPendingExists   = errors.New("pending request already exists between these users")
	ErrDuplicateResult = errors.New("result already exists for session")
)

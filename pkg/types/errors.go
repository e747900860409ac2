package types

import "errors"

// Gateway errors. Backends wrap these with context; callers test with errors.Is.
var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrNotFound           = errors.New("todo not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknown            = errors.New("unexpected error")
)

// Backend lifecycle errors.
var (
	ErrAlreadyAttached = errors.New("backend is already attached")
	ErrDetached        = errors.New("backend is detached")
)

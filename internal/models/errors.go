package models

import "errors"

// Error taxonomy shared by all services. Handlers map these to HTTP
// status codes with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAuth              = errors.New("not authenticated")
	ErrExhaustedAttempts = errors.New("exhausted attempts")
	ErrBackend           = errors.New("backend error")
)

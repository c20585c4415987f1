package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	// Message errors
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageDeleted  = errors.New("message deleted for everyone")
	ErrEmptyMessage    = errors.New("message has no text or attachment")
	ErrSelfMessage     = errors.New("cannot message yourself")
	ErrProfileNotFound = errors.New("profile not found")

	// Storage errors
	ErrStorageUnavailable = errors.New("object storage not configured")

	// AI errors
	ErrMalformedResponse  = errors.New("malformed response")
	ErrQuotaExceeded      = errors.New("provider quota exceeded")
	ErrAllProvidersFailed = errors.New("all AI providers failed")
)

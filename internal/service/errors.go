package service

import "errors"

// Caller-facing error taxonomy. Handlers map these with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrAuth            = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("missing or invalid access token")
	ErrForbidden       = errors.New("unauthorized")
	ErrNotFound        = errors.New("token not found or already invalidated")
	ErrExpired         = errors.New("token has expired")
	ErrClaimExpired    = errors.New("token expired")
	ErrClaimInvalid    = errors.New("invalid token")
	ErrConflict        = errors.New("email already registered")
	ErrDelivery        = errors.New("failed to send email")
	ErrCodeUnavailable = errors.New("could not allocate a unique pass code")
)

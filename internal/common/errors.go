// Package common defines shared constants and sentinel errors used across
// the relay server, its admin API and the admin client. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Registration errors.
	ErrorInvalidActivationKey = errors.New("invalid activation key")
	ErrorNotRegistered        = errors.New("not registered")
	ErrorAlreadyRegistered    = errors.New("session already registered to another vault")

	// Rate limiting.
	ErrorRateLimited = errors.New("rate limit exceeded")
)

// Package common defines shared constants and sentinel errors used across
// client and server layers of mealkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Credential errors. Unknown user and wrong password share one value.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")

	// Token errors. Bad signature, unknown refresh token and reused refresh
	// token all collapse into ErrInvalidToken.
	ErrNoTokenProvided = errors.New("no token provided")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")

	// ErrForbidden is returned when an authenticated caller acts on
	// another user's sessions.
	ErrForbidden = errors.New("forbidden")
)

package session

import "errors"

var (
	// Login failures.
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginRateLimited   = errors.New("too many login attempts")

	// Forbidden family. Each sub-cause keeps its own message so clients can
	// tell a device revocation apart from an expired token.
	ErrMissingRefreshToken = errors.New("refresh token missing")
	ErrCSRFMismatch        = errors.New("invalid csrf token")
	ErrRefreshInvalid      = errors.New("refresh token expired or invalid")
	ErrTokenReuse          = errors.New("refresh token not recognized")
	ErrDeviceMismatch      = errors.New("device mismatch, session revoked")
	ErrUsageExceeded       = errors.New("refresh usage limit exceeded, session revoked")
)

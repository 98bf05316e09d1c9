package auth

import "errors"

var (
	// ErrUnauthenticated means no valid session backs the call.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden means the identity's rank does not cover the operation.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSessionExpired means the token was known but its absolute expiry passed.
	ErrSessionExpired = errors.New("auth: session expired")
	// ErrSessionNotFound means the token is unknown or revoked server-side.
	ErrSessionNotFound = errors.New("auth: session not found")
)

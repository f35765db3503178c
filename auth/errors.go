package auth

import "errors"

// Sentinel errors for token minting and verification.
var (
	ErrMissingSigningKey  = errors.New("auth: signing key is empty")
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
)

package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	ErrMissingEnv       = errors.New("secret: missing environment variable")
	ErrUnknownProvider  = errors.New("secret: provider not registered")
	ErrEmptySecret      = errors.New("secret: empty value")
	ErrNotFound         = errors.New("secret: not found")
	ErrInvalidReference = errors.New("secret: invalid reference")
)

package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The single message prevents account enumeration through error text.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrInvalidEmail             = errors.New("invalid email address")
	ErrEmailAlreadyExists       = errors.New("email already registered")
)

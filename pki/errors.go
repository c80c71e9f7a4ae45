package pki

import "errors"

var (
	// ErrInvalidName is returned when a client name fails the naming rule
	// before any store access happens.
	ErrInvalidName = errors.New("invalid client name")

	// ErrNotInitialized is returned when an operation requires a CA but the
	// store holds none.
	ErrNotInitialized = errors.New("certificate authority is not initialized")

	// ErrAlreadyInitialized is returned by InitCA when CA material already
	// exists; there is no implicit rotation.
	ErrAlreadyInitialized = errors.New("certificate authority is already initialized")

	// ErrAlreadyExists is returned when an active certificate with the
	// requested name exists.
	ErrAlreadyExists = errors.New("an active certificate with this name already exists")

	// ErrNotFound is returned when the referenced certificate does not exist.
	ErrNotFound = errors.New("certificate not found")

	// ErrCryptoFailure is returned when key generation or signing fails,
	// typically an environment problem rather than bad input.
	ErrCryptoFailure = errors.New("cryptographic operation failed")
)

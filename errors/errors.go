package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrMissingCredential indicates that a required API key resolved to an
	// empty value. It is always returned before any network I/O happens.
	ErrMissingCredential = errors.New("missing credential")

	// ErrTransport indicates a network or HTTP-level failure talking to a
	// provider endpoint.
	ErrTransport = errors.New("transport fault")

	// ErrProvider indicates a well-formed error response from a provider API.
	ErrProvider = errors.New("provider fault")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")
)

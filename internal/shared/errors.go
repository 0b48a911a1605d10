package shared

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a unique-key collision (username, tenant name, resource type+name).
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates a malformed request body, rejected before touching storage.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates the request carries no valid session or token.
	// The cause is deliberately not distinguished to avoid account enumeration.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated request was denied.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

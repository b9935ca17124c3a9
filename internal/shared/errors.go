package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNonceMissing occurs when a nonce is required but absent.
	ErrNonceMissing = errors.New("nonce missing")
	// ErrNonceMismatch occurs when the supplied nonce does not verify.
	ErrNonceMismatch = errors.New("nonce mismatch")
)

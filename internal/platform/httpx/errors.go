// Package httpx provides HTTP response utilities for the JSON API.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by the domain layer. Handlers wrap these with
// context and RespondError maps them onto HTTP status codes.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("duplicate entry")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrNonceMismatch  = errors.New("nonce verification failed")
	ErrPartialSuccess = errors.New("partially completed")
)

// codeFor returns the machine readable code carried in error envelopes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrConflict):
		return "email_exists"
	case errors.Is(err, ErrForbidden):
		return "registration_disabled"
	case errors.Is(err, ErrUnauthorized):
		return "not_logged_in"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit_exceeded"
	case errors.Is(err, ErrNonceMismatch):
		return "invalid_nonce"
	default:
		return "internal_error"
	}
}

// RespondError maps domain errors onto JSON error envelopes. Security
// sensitive failures deliberately carry a generic message.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, codeFor(err), err.Error())
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, codeFor(err), err.Error())
	case errors.Is(err, ErrConflict):
		Error(w, http.StatusConflict, codeFor(err), err.Error())
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, codeFor(err), err.Error())
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, codeFor(err), "authentication required")
	case errors.Is(err, ErrRateLimited):
		Error(w, http.StatusTooManyRequests, codeFor(err), "too many attempts, please try again later")
	case errors.Is(err, ErrNonceMismatch):
		Error(w, http.StatusForbidden, codeFor(err), "security check failed")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

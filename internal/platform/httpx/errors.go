package httpx

import (
	"errors"
	"net/http"

	"github.com/verdantis/verdantis/internal/shared"
)

// Machine-readable error codes surfaced to clients.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeValidation      = "validation_error"
	CodeConflict        = "conflict"
	CodeNotFound        = "not_found"
	CodeServerError     = "server_error"
)

// RespondError maps domain errors to HTTP responses. Authentication and
// authorization rejections stay generic: the body never says which check
// failed or which permission was missing.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, CodeUnauthenticated, "")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, CodeForbidden, "")
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Error(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		Error(w, http.StatusInternalServerError, CodeServerError, "")
	}
}

package httpx

import (
	"net/http"

	"github.com/sundayezeilo/shorttag/internal/errx"
)

// ErrorKindToStatus maps an error kind to the HTTP status reported for it.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps an error kind to the "error" field of ErrorResponse.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.Invalid:
		return "invalid_input"
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

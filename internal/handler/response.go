package handler

// JSON RESPONSES:
// The read API answers with go-chi/render. Every error has the same shape:
//
//	{"error": "not_found", "message": "post not found with id 12"}
//
// so clients can parse failures without looking at the status first.

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sakif/inkwell/internal/apperror"
)

// ErrorResponse is the error body of every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

// writeError maps a domain error to its status code. Errors that are not
// *apperror.AppError are reported as a bare internal error so SQL and file
// paths never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, kind := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrReference):
		status, kind = http.StatusUnprocessableEntity, "reference_error"
	}

	writeJSON(w, r, status, ErrorResponse{Error: kind, Message: appErr.Message})
}

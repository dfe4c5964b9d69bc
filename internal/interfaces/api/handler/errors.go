package handler

import (
	"errors"
	"net/http"

	appErrors "medreminder/internal/pkg/errors"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrScheduling):
		return http.StatusUnprocessableEntity
	case errors.Is(err, appErrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, appErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, appErrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrMedicationNotFound), errors.Is(err, appErrors.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Server errors are not echoed to the client.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = appErrors.ErrInternalServer.Error()
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

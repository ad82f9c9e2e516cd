package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response. Exactly one of Error and
// Data carries a value; the other is null.
type Envelope struct {
	Error *APIError `json:"error"`
	Data  any       `json:"data"`
}

// APIError describes a failed request.
type APIError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// OK sends a 200 response with data. A nil data is sent as null.
func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Data: data})
}

// Created sends a 201 response with data.
func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, Envelope{Data: data})
}

// Error sends an error envelope with the given status.
func Error(c echo.Context, status int, message, detail string) error {
	return c.JSON(status, Envelope{Error: &APIError{Message: message, Detail: detail}})
}

// BadRequest sends 400 with message and error detail.
func BadRequest(c echo.Context, message, detail string) error {
	return Error(c, http.StatusBadRequest, message, detail)
}

// GatewayTimeout sends 504 when storage did not answer in time.
func GatewayTimeout(c echo.Context, message, detail string) error {
	return Error(c, http.StatusGatewayTimeout, message, detail)
}

// InternalError sends 500 with message and error detail.
func InternalError(c echo.Context, message, detail string) error {
	return Error(c, http.StatusInternalServerError, message, detail)
}

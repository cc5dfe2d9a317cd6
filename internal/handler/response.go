package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"payrecon/internal/repository"
	"payrecon/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized

	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrMalformedPayload),
		errors.Is(err, service.ErrInvalidBookingCode),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidCorrelationCode):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// RecoveryHandler turns panics into a structured 500 instead of an empty body.
func RecoveryHandler(c *gin.Context, recovered any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

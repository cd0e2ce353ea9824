// Package handler maps domain errors onto the HTTP surface. All endpoints
// respond with a {"success": ..., "error": ...} JSON body.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pverheyen/heimdall/internal/domain"
)

// ErrorCodeToHTTPStatus translates a domain error code to an HTTP status.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID, domain.EPAYLOAD:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED, domain.ESIGNATURE:
		return http.StatusUnauthorized
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes a JSON error body for err. Internal errors get a
// generic message; the underlying cause belongs in logs, not responses.
func ErrorResponse(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	if code == domain.EINTERNAL {
		message = "internal error"
	}

	return c.JSON(ErrorCodeToHTTPStatus(code), map[string]any{
		"success": false,
		"error":   message,
	})
}

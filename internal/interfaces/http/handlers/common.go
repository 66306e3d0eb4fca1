// Package handlers implements the HTTP API: diagnosis requests, reference
// library management, and health probes.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/diagnovera/diagnovera/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode maps application error codes onto HTTP statuses.
func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.CodeInvalidParam,
		errors.CodeEncounterInvalid,
		errors.CodeProfileInvalid,
		errors.CodeMalformedObservation,
		errors.CodeUnknownDomain,
		errors.CodeSectorExhausted:
		return http.StatusBadRequest
	case errors.CodeNotFound,
		errors.CodeProfileNotFound,
		errors.CodeEncounterNotFound:
		return http.StatusNotFound
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeForbidden:
		return http.StatusForbidden
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured error body.  Internal errors are masked
// so infrastructure details never leak to callers.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := statusForCode(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    code.String(),
		Message: message,
	})
}

// parsePaging extracts offset/limit query parameters with sane bounds.
func parsePaging(c *gin.Context) (offset, limit int) {
	limit = 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	entitle "github.com/xraph/entitle"
)

// StatusFor maps an engine, identity or provider error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, entitle.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, entitle.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, entitle.ErrPlanRestricted):
		return http.StatusForbidden
	case errors.Is(err, entitle.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, entitle.ErrTextTooLong),
		errors.Is(err, entitle.ErrInvalidInput),
		errors.Is(err, entitle.ErrInvalidSettings),
		errors.Is(err, entitle.ErrUnknownPlan):
		return http.StatusBadRequest
	case errors.Is(err, entitle.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, entitle.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abort writes err as a JSON error body and stops the handler chain.
// Server-side failures are logged and reported without detail.
func (s *Server) abort(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request error",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"request_id": c.GetString(requestIDKey),
	})
}

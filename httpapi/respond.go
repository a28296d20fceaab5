package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogorithm/blogorithm"
	"github.com/blogorithm/blogorithm/cms"
	"github.com/blogorithm/blogorithm/logger"
	"github.com/blogorithm/blogorithm/store"
)

// respondError maps engine errors onto a structured JSON payload. Raw error
// chains are logged, never returned to clients.
func respondError(c *gin.Context, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			"path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, blogorithm.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, blogorithm.ErrUnauthorized):
		return http.StatusForbidden, "insufficient role"
	case errors.Is(err, blogorithm.ErrEmailMismatch):
		return http.StatusForbidden, "email does not match session"
	case errors.Is(err, blogorithm.ErrAdminImmutable):
		return http.StatusForbidden, "admin roles cannot be changed here"
	case errors.Is(err, blogorithm.ErrPrimaryAdminOnly):
		return http.StatusForbidden, "primary admin only"
	case errors.Is(err, blogorithm.ErrSetupKeyMissing):
		return http.StatusForbidden, "admin setup disabled"
	case errors.Is(err, blogorithm.ErrSetupKeyInvalid):
		return http.StatusForbidden, "invalid setup key"
	case errors.Is(err, blogorithm.ErrSignInRateLimited),
		errors.Is(err, blogorithm.ErrAccessRequestRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, blogorithm.ErrInvalidRole),
		errors.Is(err, blogorithm.ErrEmailRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrAdminAlreadyConfigured):
		return http.StatusConflict, "primary admin already configured"
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, cms.ErrDocumentNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

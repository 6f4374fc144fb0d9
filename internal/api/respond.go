package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldstone/opportunity-engine/internal/auth"
	apperrors "github.com/fieldstone/opportunity-engine/internal/errors"
)

// handlerTimeout bounds every request-scoped database interaction.
const handlerTimeout = 10 * time.Second

// requestContext derives a bounded context for one handler invocation.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), handlerTimeout)
}

// respondError maps application error codes onto HTTP statuses. Unknown
// errors become opaque 500s so internals never leak into responses.
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidationError, apperrors.ErrCodeTierGap:
		status = http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		status = http.StatusForbidden
	case apperrors.ErrCodeConflict, apperrors.ErrCodeAlreadyEnrolled, apperrors.ErrCodeGraduatedFrozen:
		status = http.StatusConflict
	case apperrors.ErrCodeLimitExceeded:
		status = http.StatusPaymentRequired
	}

	c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// identity extracts the authenticated tenant and user, aborting with 401 if
// the middleware did not populate them.
func identity(c *gin.Context) (tenantID, userID uuid.UUID, ok bool) {
	tenantID, tok := auth.TenantID(c)
	userID, uok := auth.UserID(c)
	if !tok || !uok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, userID, true
}

// pathUUID parses a UUID path parameter, responding 400 on garbage.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// parseUUIDField parses a UUID carried in a request body field.
func parseUUIDField(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// requireAdmin aborts with 403 unless the authenticated user is an admin.
func requireAdmin(c *gin.Context) bool {
	role, exists := c.Get("user_role")
	if !exists || role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return false
	}
	return true
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainerrors "paymentcore.backend/internal/domain/errors"
	"paymentcore.backend/internal/interfaces/http/response"
)

// Identity headers injected by the Edge Filter after it verifies the
// caller's access token. This service trusts them unconditionally, the
// same way it trusts that nothing but the Edge Filter can reach it
// directly in production.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"

	userIDContextKey contextValueKey = "user_id"
)

type contextValueKey string

// IdentityMiddleware extracts the caller's identity from the headers
// the Edge Filter sets and rejects any request missing a well-formed
// X-User-Id.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := c.GetHeader(HeaderUserID)
		userID, err := uuid.Parse(rawID)
		if err != nil {
			response.Error(c, domainerrors.Unauthorized("missing or invalid identity headers"))
			c.Abort()
			return
		}

		c.Set(string(userIDContextKey), userID)
		ctx := context.WithValue(c.Request.Context(), userIDContextKey, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserID extracts the authenticated caller's id set by IdentityMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(string(userIDContextKey))
	if !ok {
		return uuid.UUID{}, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

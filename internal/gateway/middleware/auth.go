package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"paymentcore.backend/internal/interfaces/http/middleware"
	"paymentcore.backend/pkg/jwt"
)

const bearerPrefix = "Bearer "

// publicPaths bypass authentication entirely.
var publicPaths = []string{"/api/v1/auth/", "/user-fallback", "/actuator/health"}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) || path == p {
			return true
		}
	}
	return false
}

// AuthMiddleware implements the Edge Filter: public paths pass
// through unmodified; everything else must carry a valid RS256 bearer
// token (cookie or header), whose claims are injected as the
// downstream X-User-* identity headers after stripping any inbound
// copies to prevent spoofing.
func AuthMiddleware(validator *jwt.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Step 1: strip any spoofed identity headers regardless of path.
		c.Request.Header.Del(middleware.HeaderUserID)
		c.Request.Header.Del(middleware.HeaderUserEmail)
		c.Request.Header.Del(middleware.HeaderUserName)

		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			unauthorized(c, "Missing authentication token")
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Request.Header.Set(middleware.HeaderUserID, claims.Subject)
		c.Request.Header.Set(middleware.HeaderUserEmail, claims.Email)
		c.Request.Header.Set(middleware.HeaderUserName, claims.Username)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}
	return ""
}

// unauthorized renders the standard error envelope rather than an
// ad-hoc body: authentication failures never short-circuit with a
// response shape the rest of the system doesn't recognize.
func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    http.StatusUnauthorized,
		"code":      1000,
		"error":     "AUTHENTICATION",
		"message":   message,
		"path":      c.Request.URL.Path,
	})
}

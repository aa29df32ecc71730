package response

import (
	"time"

	"github.com/gin-gonic/gin"
	domainerrors "paymentcore.backend/internal/domain/errors"
)

// Success sends a success response.
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error renders the standard error envelope: timestamp, status, code,
// error, message, path.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)

	c.JSON(appErr.Status, gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    appErr.Status,
		"code":      appErr.Code,
		"error":     string(appErr.Kind),
		"message":   appErr.Message,
		"path":      c.Request.URL.Path,
	})
}

// ServiceUnavailable renders the gateway's circuit-breaker fallback body.
func ServiceUnavailable(c *gin.Context, service string) {
	c.JSON(503, gin.H{"message": service + " unavailable"})
}

package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"tabletop-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the first error recorded on the context as the
// {"error": {...}} envelope. Handlers that already wrote a body are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		log := logger.FromGin(c)
		attrs := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.LogError(appErr, "Request failed", attrs...)
		} else {
			log.Warn("Request rejected", attrs...)
		}

		abortWith(c, appErr)
	}
}

// RecoveryWithLogger turns a panic into a 500 SERVER_ERROR envelope
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.FromGin(c).Error("Panic recovered",
				"error", r,
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			appErr := NewInternalServerError(CodeServerError, "The server encountered an unexpected error")
			if gin.Mode() == gin.DebugMode {
				appErr = appErr.WithDetails(fmt.Sprintf("Panic: %v", r))
			}
			abortWith(c, appErr)
		}()

		c.Next()
	}
}

func abortWith(c *gin.Context, appErr *AppError) {
	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	}
	if id := c.Writer.Header().Get("X-Request-ID"); id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{"error": body})
}

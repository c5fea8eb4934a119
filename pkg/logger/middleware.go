package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware that scopes a logger to the request
// and logs its completion. Successful requests to quietPaths, such as health
// probes and metric scrapes, log at debug level.
func Middleware(logger *Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID)
		if gameID := c.Param("gameId"); gameID != "" {
			reqLogger = reqLogger.WithGameID(gameID)
		}

		c.Set(ContextKey, reqLogger)
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), reqLogger))

		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		method := c.Request.Method

		if quiet[path] && status < 400 {
			reqLogger.Debug("request completed", "method", method, "path", path, "status", status)
		} else {
			reqLogger.LogRequest(method, path, status, latency)
		}

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", method,
				"path", path,
				"error_type", err.Type,
			)
		}
	}
}

// FromGin returns the request-scoped logger, falling back to the global one
func FromGin(c *gin.Context) *Logger {
	if l, ok := c.Get(ContextKey); ok {
		if lg, ok := l.(*Logger); ok {
			return lg
		}
	}
	return GetGlobal()
}

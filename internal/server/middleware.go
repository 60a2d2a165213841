package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

const (
	headerRequestID = "X-Request-Id"
	headerUserID    = "X-User-ID"
)

// RequestID reuses the caller's X-Request-Id or mints one, and stores it on
// the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

// UserID tags the request context with the X-User-ID header when present.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(headerUserID)); id != "" {
			c.Request = c.Request.WithContext(common.WithUserID(c.Request.Context(), id))
		}
		c.Next()
	}
}

// Logging emits one structured line per request.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		log := common.LoggerWith(c.Request.Context(), logger)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			log.Error("request.complete", attrs...)
			return
		}
		log.Info("request.complete", attrs...)
	}
}

// Recovery turns handler panics into a 500 response.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				common.LoggerWith(c.Request.Context(), logger).Error("panic",
					"error", rec,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
				)
				fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error interno del servidor")
			}
		}()
		c.Next()
	}
}

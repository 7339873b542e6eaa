package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger 使用 slog 记录请求日志
func RequestLogger() gin.HandlerFunc {
	logger := slog.Default()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"userId", GetUserID(c),
		}
		if status >= 500 {
			logger.Error("HTTP request failed", attrs...)
			return
		}
		logger.Debug("HTTP request", attrs...)
	}
}

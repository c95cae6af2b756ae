package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger writes one access line per request. Lines for /api/ routes carry the
// owner, the project and the render cache outcome; everything else logs at debug.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api/") {
			log.Debug("HTTP",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
			)
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if owner := c.GetString(CtxOwnerID); owner != "" {
			fields = append(fields, zap.String(CtxOwnerID, owner))
		}
		if id := c.Param("project_id"); id != "" {
			fields = append(fields, zap.String("project_id", id))
		}
		if hit := c.Writer.Header().Get("X-Cache"); hit != "" {
			fields = append(fields, zap.String("cache", strings.ToLower(hit)))
		}
		if left := c.Writer.Header().Get("X-RateLimit-Remaining"); left != "" {
			fields = append(fields, zap.String("rate_remaining", left))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log.Log(accessLevel(status), "HTTP", fields...)
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status == 429:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

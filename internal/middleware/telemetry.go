package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OtelTracing traces /api/ requests only; health and swagger stay out of the traces.
func OtelTracing(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, "/api/")
	}))
	return otelgin.Middleware(serviceName, opts...)
}

// TraceID echoes the trace id in X-Trace-Id and, once the handler ran, tags the
// span with the project, the requested output and the preview cache outcome.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.SpanContext().IsValid() {
			c.Next()
			return
		}
		c.Header("X-Trace-Id", span.SpanContext().TraceID().String())

		c.Next()

		var attrs []attribute.KeyValue
		if id := c.Param("project_id"); id != "" {
			attrs = append(attrs, attribute.String("qr.project_id", id))
		}
		if f := c.Query("format"); f != "" {
			attrs = append(attrs, attribute.String("qr.format", strings.ToLower(f)))
		}
		if hash := c.Param("hash"); hash != "" {
			attrs = append(attrs, attribute.String("qr.generation_hash", hash))
		}
		if hit := c.Writer.Header().Get("X-Cache"); hit != "" {
			attrs = append(attrs, attribute.Bool("qr.cache_hit", hit == "HIT"))
		}
		span.SetAttributes(attrs...)
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pockett/agreementflow/internal/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestDetails assigns every request a trace ID, honoring one supplied by
// the caller, and threads it through the request context so all log lines
// for the request correlate.
func RequestDetails() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(requestIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		c.Next()
	}
}

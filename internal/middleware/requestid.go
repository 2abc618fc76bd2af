package middleware

import (
	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/tracer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID 透传或生成请求 ID，并为整个请求开一个 span
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		traceID := tracer.TraceID(ctx)
		c.Set("request_id", requestID)
		c.Set("trace_id", traceID)
		c.Header(RequestIDHeader, requestID)
		c.Next()

		logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"trace_id":   traceID,
			"status":     c.Writer.Status(),
			"path":       c.FullPath(),
		}).Debug("request completed")
	}
}

package tracing

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// maxIncomingID bounds request ids accepted from clients.
const maxIncomingID = 128

// HTTPMiddleware creates Gin middleware for request tracing
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(HeaderRequestID); incoming != "" &&
			utils.ValidateString(incoming, "requestId", 1, maxIncomingID, true) == nil {
			ctx = WithRequestID(ctx, incoming)
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, span.RequestID)

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"msgmon/internal/logger"
	"msgmon/pkg/errors"
	"msgmon/pkg/ids"
	"msgmon/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

// LoggerMiddleware logs one line per request. Paths in skip are not logged.
func LoggerMiddleware(log logger.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skipped[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", msg)
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.ErrorwCtx(c.Request.Context(), "HTTP Request", fields...)
		} else {
			log.InfowCtx(c.Request.Context(), "HTTP Request", fields...)
		}
	}
}

// RecoveryMiddleware answers 500 without exposing the panic details.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"error", errors.FromPanic(recovered),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal))
	})
}

// RequestIDMiddleware propagates X-Request-ID and stores it as the trace id
// of the request context when tracing has not set one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = ids.NewUUID()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := c.Request.Context()
		if logging.GetTraceID(ctx) == "" {
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, requestID))
		}
		c.Next()
	}
}

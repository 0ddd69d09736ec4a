package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = constants.HeaderRequestID

// RequestContext assigns a request id (reusing a client supplied one) and records the
// client address in the request context.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(string(constants.ContextKeyRequestID), requestID)

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyClientIP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger 记录每个请求的访问日志
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if p, ok := PrincipalFrom(c); ok {
			fields = append(fields, logger.Subject(p.Subject()))
		}

		switch {
		case status >= 500:
			log.Warn(c.Request.Context(), "request failed", fields...)
		case c.Request.URL.Path == constants.DefaultLivenessCheckPath || c.Request.URL.Path == constants.DefaultMetricsPath:
			log.Debug(c.Request.Context(), "request completed", fields...)
		default:
			log.Info(c.Request.Context(), "request completed", fields...)
		}
	}
}

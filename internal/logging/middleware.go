package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	entryKey        = "logger"
)

// RequestLogger tags each request with an id (kept from X-Request-ID when it
// is a uuid) and logs it once it has been served.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		entry := logger.WithField(FieldRequestID, requestID)
		c.Set(entryKey, entry)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		entry.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Request served")
	}
}

// Entry returns the request-scoped log entry, or a plain entry on logger
// when the middleware did not run.
func Entry(c *gin.Context, logger *logrus.Logger) *logrus.Entry {
	if v, ok := c.Get(entryKey); ok {
		if e, ok := v.(*logrus.Entry); ok {
			return e
		}
	}
	return logrus.NewEntry(logger)
}

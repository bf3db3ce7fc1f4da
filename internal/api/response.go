package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"toperty/server/internal/filter"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/ingest"
	"toperty/server/internal/logging"
	"toperty/server/internal/queue"
	"toperty/server/internal/zones"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

// classify maps an error to its HTTP status and log kind. Caller input
// errors are 4xx, everything else is treated as infrastructure.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, zones.ErrInvalidZoneQuery),
		errors.Is(err, ingest.ErrInvalidBatch):
		return http.StatusBadRequest, logging.KindInput
	case errors.Is(err, geocoding.ErrNoResults):
		return http.StatusNotFound, logging.KindInput
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable, logging.KindInfrastructure
	}
	return http.StatusInternalServerError, logging.KindInfrastructure
}

// fail logs err with its kind and writes the error envelope.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status, kind := classify(err)
	entry := logging.Entry(c, h.logger).WithError(err).WithField(logging.FieldErrorKind, kind)
	if kind == logging.KindInput {
		entry.Warn(msg)
	} else {
		entry.Error(msg)
	}
	c.JSON(status, gin.H{"status": "error", "detail": err.Error()})
}

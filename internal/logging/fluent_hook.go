package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Poster is the part of *fluent.Fluent the hook needs.
type Poster interface {
	Post(tag string, message interface{}) error
}

// FluentHook forwards log entries to Fluentd, tagged by level.
type FluentHook struct {
	poster Poster
	levels []logrus.Level
}

// NewFluentHook ships every entry at or above minLevel.
func NewFluentHook(poster Poster, minLevel logrus.Level) *FluentHook {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &FluentHook{poster: poster, levels: levels}
}

func (h *FluentHook) Levels() []logrus.Level { return h.levels }

func (h *FluentHook) Fire(entry *logrus.Entry) error {
	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			data[k] = err.Error()
			continue
		}
		data[k] = v
	}
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	data["timestamp"] = entry.Time.UTC().Format(time.RFC3339Nano)

	// A collector outage must not fail the log call.
	_ = h.poster.Post(entry.Level.String(), data)
	return nil
}

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/sirupsen/logrus"

	"toperty/server/config"
)

// Field keys shared by every component.
const (
	FieldErrorKind = "error_kind"
	FieldRequestID = "request_id"

	KindInput          = "input"
	KindInfrastructure = "infrastructure"
)

// New builds the process logger. When a Fluent host is configured entries
// are also shipped there; the returned closer releases that connection.
func New(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Logging.FluentHost == "" {
		return logger, nopCloser{}, nil
	}

	client, err := fluent.New(fluent.Config{
		FluentHost: cfg.Logging.FluentHost,
		FluentPort: cfg.Logging.FluentPort,
		TagPrefix:  cfg.Logging.FluentTag,
		Async:      true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fluent client: %w", err)
	}
	logger.AddHook(NewFluentHook(client, level))
	return logger, client, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

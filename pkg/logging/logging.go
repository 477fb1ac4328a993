package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Setup configures the process-wide logger. JSON output in production so
// log pipelines can index denial/transition events; text locally.
func Setup(logLevel string, jsonFormat bool) *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		if jsonFormat {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logger.SetFormatter(&logrus.TextFormatter{
				FullTimestamp: true,
			})
		}

		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	})
	return logger
}

// L returns the shared logger, initializing it with defaults when Setup has
// not run (tests, scripts).
func L() *logrus.Logger {
	if logger == nil {
		return Setup("info", false)
	}
	return logger
}

package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates the application logger.
// Production emits JSON for log shipping, development emits human-readable text.
func New(level logrus.Level, isProduction bool) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, isProduction)
}

// NewWithOutput is like New but writes to the given writer.
func NewWithOutput(out io.Writer, level logrus.Level, isProduction bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	if isProduction {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

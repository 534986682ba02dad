package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a JSON-formatted logger at the given level. The logger is
// passed into components explicitly; there is no package-level instance.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Package logging configures the process-wide structured logger used by
// every component in unstacked. The level comes from UNSTACKED_LOG
// (debug, info, warn, error); default is info.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	l.SetLevel(levelFromEnv())
	return l
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("UNSTACKED_LOG") {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Log returns the process-wide logger.
func Log() *logrus.Logger {
	return log
}

// With is a shorthand for Log().WithFields(fields).
func With(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// Package logging configures the process-wide logrus logger.
package logging

import (
	log "github.com/sirupsen/logrus"
)

// Setup applies the configured log level. An unparseable level falls
// back to info.
func Setup(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

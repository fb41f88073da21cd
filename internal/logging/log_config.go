package logging

import (
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SetLevelFromName sets the logging level based on a string level name
func SetLevelFromName(levelName string) {
	// An unknown name falls back to the warning level.
	level, err := log.ParseLevel(levelName)
	if err != nil {
		// tricky situation... should have been handled when validating user input
		log.SetLevel(log.WarnLevel)
		log.Warn(fmt.Sprintf("Unknown loglevel '%s' - using loglevel=warn", levelName))
		return
	}
	log.SetLevel(level)
	log.Info(fmt.Sprintf("Loglevel set to %s", levelName))
}

// SetJSONFormat switches the default logger to JSON output, for deployments
// that ship logs to a collector rather than a terminal.
func SetJSONFormat(enabled bool) {
	if enabled {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{})
}

// LoggedErrorf produces an error that is returned after having logged it at Error Level
func LoggedErrorf(format string, values ...interface{}) error {
	err := fmt.Errorf(format, values...)
	log.Error(err)
	return err
}

// NewCorrelationID returns a fresh identifier for tagging one client session's
// log lines, so a pub/sub/report run can be grepped out of a shared log
// stream.
func NewCorrelationID() string {
	return uuid.New().String()
}

// SessionLogger returns a logger entry pre-tagged with a client ID and a
// correlation ID, the shape the session engine and the CLI both log through.
func SessionLogger(clientID string) *log.Entry {
	return log.WithFields(log.Fields{
		"client_id":      clientID,
		"correlation_id": NewCorrelationID(),
	})
}

// Package logging provides the structured logger shared by the daemon and
// CLI. Daemon startup logs go to a human-readable console writer on
// stderr. ForInstance builds a JSON-line logger bound to an instance id
// over any io.Writer; nothing in this module calls it, and no per-instance
// log file is kept.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-formatted logger for daemon/CLI startup output.
func New() zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(console).With().Timestamp().Logger()
}

// ForInstance returns a JSON-line logger bound to an instance id, writing
// through w.
func ForInstance(w io.Writer, instanceID string) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("instance_id", instanceID).Logger()
}

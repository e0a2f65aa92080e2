// Package logging builds the leveled, timestamped logger shared by every
// newsgrab component.
package logging

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// TimeFormat is the timestamp layout used on every log line.
const TimeFormat = "2006-01-02 15:04:05"

// ErrUnknownLevel is returned for a level name that is not one of debug,
// info, warn or error.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel maps a level name to a log level.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, ErrUnknownLevel
	}
}

// New creates a logger writing to w at the given level. Loggers derived with
// With share w, so writes to it are serialized here.
func New(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return log.NewWithOptions(&lockedWriter{w: w}, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
	}), nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// lockedWriter serializes writes to w. Each logger returned by With carries
// its own mutex, which does not protect the writer they have in common.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// Package logging provides the process-wide structured logger.
// Every entry is a single JSON object per line on the configured writer.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu  sync.RWMutex
	std = New(os.Stdout, "info")
)

// New builds a JSON logger writing to w at the given level name ("debug", "info", "warn", "error").
// Unknown level names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       log.JSONFormatter,
	})
}

// L returns the default logger.
func L() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// SetDefault replaces the default logger, typically once at startup.
func SetDefault(l *log.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	std = l
	mu.Unlock()
}

// Component returns the default logger tagged with a component name.
func Component(name string) *log.Logger {
	return L().With("component", name)
}

// Package logger provides the process-wide structured logger. Components
// receive a *Logger and log through zap's sugared key/value API, so poll
// cycles, reconcile passes, and control audits all share one output format.
package logger

import "sync"

// Levels accepted by Get and by the config file.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	global *Logger
	once   sync.Once
)

// Get returns the process-wide logger, initializing it on first use. The
// level argument only matters on that first call; later callers share the
// same instance regardless of what they pass.
func Get(level string) *Logger {
	once.Do(func() {
		global = newZapLogger(level)
	})
	return global
}

// Package logger provides level-based logging (debug, info, warn, error)
// on top of the standard log package. Messages carry a [Component] prefix
// chosen by the caller, e.g. logger.Info("[Engine] window full key=%s", key).
package logger

import (
	"log"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

// ParseLevel maps a LOG_LEVEL string to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel sets the minimum level to log. Default is info.
func SetLevel(s string) {
	level.Store(int32(ParseLevel(s)))
}

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool {
	return l >= Level(level.Load())
}

func Debug(format string, v ...any) {
	if Enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Info(format string, v ...any) {
	if Enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func Warn(format string, v ...any) {
	if Enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

// Error is always written.
func Error(format string, v ...any) {
	log.Printf("[ERROR] "+format, v...)
}

// Fatal logs and exits the process.
func Fatal(format string, v ...any) {
	log.Fatalf("[FATAL] "+format, v...)
}

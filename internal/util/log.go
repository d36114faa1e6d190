package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// logf formats and emits one line through pterm's default logger (stderr).
func logf(level pterm.LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l := &pterm.DefaultLogger
	switch level {
	case pterm.LogLevelDebug:
		l.Debug(msg)
	case pterm.LogLevelWarn:
		l.Warn(msg)
	case pterm.LogLevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

func LogDebug(format string, args ...interface{})   { logf(pterm.LogLevelDebug, format, args...) }
func LogInfo(format string, args ...interface{})    { logf(pterm.LogLevelInfo, format, args...) }
func LogWarning(format string, args ...interface{}) { logf(pterm.LogLevelWarn, format, args...) }
func LogError(format string, args ...interface{})   { logf(pterm.LogLevelError, format, args...) }

// LogSuccess marks a completed step. pterm's logger has no success level, so
// it shares info.
func LogSuccess(format string, args ...interface{}) { logf(pterm.LogLevelInfo, "✓ "+format, args...) }

// EnableDebug lowers the logger threshold to debug.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// TransferLog tags each line with a transfer id, e.g. "[000003e9] ...".
type TransferLog uint32

func (l TransferLog) tag(format string) string {
	return fmt.Sprintf("[%08x] %s", uint32(l), format)
}

func (l TransferLog) Debug(format string, args ...interface{}) {
	logf(pterm.LogLevelDebug, l.tag(format), args...)
}

func (l TransferLog) Info(format string, args ...interface{}) {
	logf(pterm.LogLevelInfo, l.tag(format), args...)
}

func (l TransferLog) Warning(format string, args ...interface{}) {
	logf(pterm.LogLevelWarn, l.tag(format), args...)
}

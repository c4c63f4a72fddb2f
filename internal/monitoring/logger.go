// Package monitoring carries the diagnostic logger shared by the
// processing stages.
package monitoring

import (
	"context"
	"fmt"
	"log"
	"log/slog"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SlogLogf adapts l to the Logf signature. Messages are logged at level
// with the formatted text as the message.
func SlogLogf(l *slog.Logger, level slog.Level) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		l.Log(context.Background(), level, fmt.Sprintf(format, v...))
	}
}

// Package log holds the process-wide logger shared by every snail component.
package log

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// L is the root logger. Components derive named sub-loggers from it.
var L hclog.Logger

func init() {
	L = newLogger(os.Stderr, hclog.Info)

	EnableTrace()
}

func newLogger(w io.Writer, level hclog.Level) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "snail",
		Output: w,
		Level:  level,
	})
}

// EnableTrace switches L to trace level when SNAIL_TRACE is set.
func EnableTrace() {
	if str := os.Getenv("SNAIL_TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// ToFile sends L's output to a size-rotated file as well as stderr. Loggers
// already derived from L keep writing where they did.
func ToFile(path string) io.Closer {
	f := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}
	L = newLogger(io.MultiWriter(os.Stderr, f), L.GetLevel())
	return f
}

// Named returns a sub-logger of L, or logger itself when it is non-nil.
func Named(logger hclog.Logger, name string) hclog.Logger {
	if logger != nil {
		return logger
	}
	return L.Named(name)
}

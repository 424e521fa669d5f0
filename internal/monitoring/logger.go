// Package monitoring carries the pipeline's diagnostic logger and its
// Prometheus metrics.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger; tests usually mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every message with "[component] " and
// forwards it to whatever Logf is at call time.
func Prefixed(component string) func(format string, v ...interface{}) {
	tag := "[" + component + "] "
	return func(format string, v ...interface{}) {
		Logf(tag+format, v...)
	}
}

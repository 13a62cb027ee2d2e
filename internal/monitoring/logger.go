// Package monitoring publishes run metrics for external scraping and
// carries the diagnostic logger used while doing so.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf;
// the CLI and tests may redirect or mute it with SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

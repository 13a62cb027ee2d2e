package tracks

import (
	"io"
	"log"
	"sync/atomic"
)

// Loggers are swapped atomically: stages may log from worker goroutines
// while the CLI or a test reconfigures the streams.
var (
	opsLogger   atomic.Pointer[log.Logger]
	diagLogger  atomic.Pointer[log.Logger]
	traceLogger atomic.Pointer[log.Logger]
)

// SetLogWriters configures the three logging streams for the tracks package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger.Store(newLogger("[tracks] ", ops))
	diagLogger.Store(newLogger("[tracks] ", diag))
	traceLogger.Store(newLogger("[tracks] ", trace))
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (rejected merges).
func opsf(format string, args ...any) {
	if l := opsLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (assembly and merge summaries).
func diagf(format string, args ...any) {
	if l := diagLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-uid and per-gap telemetry).
func tracef(format string, args ...any) {
	if l := traceLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

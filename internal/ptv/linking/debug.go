package linking

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

// SetLogWriters configures the three logging streams for the linking package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger.Store(newLogger("[linking] ", ops))
	diagLogger.Store(newLogger("[linking] ", diag))
	traceLogger.Store(newLogger("[linking] ", trace))
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (lookback misses).
func opsf(format string, args ...any) {
	if l := opsLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-frame match counts).
func diagf(format string, args ...any) {
	if l := diagLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-candidate distances).
func tracef(format string, args ...any) {
	if l := traceLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}

// Package cmdlog wraps CLI command bodies with run/error counters and a
// completion log line.
package cmdlog

import (
	"time"

	"cdr3q/internal/logging"
	"cdr3q/internal/metrics"
)

func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err.Error()
		logging.Error(cmd+"_error", fields)
	} else {
		logging.Info(cmd+"_ok", fields)
	}
	return err
}

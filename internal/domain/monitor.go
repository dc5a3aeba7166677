package domain

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ViolationExitCode is the process status used when a runtime safety
// invariant is violated mid-run.
const ViolationExitCode = 2

// Monitor receives process-wide dynamic-safety signals: something observed
// at runtime that invalidates the assumptions parallel execution rests on.
// A reported violation aborts the whole run immediately unless the monitor
// was configured to ignore this class of signal.
type Monitor struct {
	mu     sync.Mutex
	ignore bool
	out    io.Writer
	exit   func(int)
}

// NewMonitor constructs a Monitor. With ignore set, violations are logged
// and the run continues.
func NewMonitor(ignore bool) *Monitor {
	return &Monitor{ignore: ignore, out: os.Stderr, exit: os.Exit}
}

// Violation reports that a safety invariant was broken during the given
// stage ("collection", "execution", ...). Unless the monitor ignores
// violations, this call does not return.
func (mn *Monitor) Violation(stage, detail string) {
	mn.mu.Lock()
	ignore, out, exit := mn.ignore, mn.out, mn.exit
	mn.mu.Unlock()

	if ignore {
		slog.Warn("ignoring runtime safety violation", "stage", stage, "detail", detail)
		return
	}

	msg := fmt.Sprintf("runtime safety invariant violated during %s: %s", stage, detail)
	slog.Error(msg)
	fmt.Fprintln(out, msg)
	exit(ViolationExitCode)
}

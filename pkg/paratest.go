// Package pkg is the public API of paratest: register test cases with a
// Suite and run them on several OS threads in lock-step, with thread-unsafe
// cases detected up front and demoted to a single thread.
package pkg

import (
	"io"
	"os"

	"paratest.dev/pkg/paratest/internal/adapter"
	"paratest.dev/pkg/paratest/internal/controller"
	"paratest.dev/pkg/paratest/internal/domain"
	"paratest.dev/pkg/paratest/internal/domain/safety"
	"paratest.dev/pkg/paratest/internal/redirect"
	m "paratest.dev/pkg/paratest/internal/model"
)

// Core run types.
type (
	Suite         = domain.Suite
	Config        = domain.SuiteConfig
	Comparator    = domain.Comparator
	Monitor       = domain.Monitor
	TestCase      = m.TestCase
	TestBody      = m.TestBody
	WorkerContext = m.WorkerContext
	RunReport     = m.RunReport
	CaseReport    = m.CaseReport
	Entry         = m.Entry
	Flags         = m.Flags
	Callable      = m.Callable
	Verdict       = m.Verdict
)

// Property-based-test recognition.
type (
	PropertyTestDetector = safety.PropertyTestDetector
	HarnessDetector      = safety.HarnessDetector
)

// Stream redirection.
type (
	Registry = redirect.Registry
	Handle   = redirect.Handle
	Scope    = redirect.Scope
)

const (
	ScopeGlobal    = redirect.ScopeGlobal
	ScopeGoroutine = redirect.ScopeGoroutine
)

// Signal errors a test body returns to control how its case is reported.
var (
	Skip    = m.Skip
	Failf   = m.Failf
	Warning = m.Warning
)

// ParseEntry parses "module.symbol" into a blocklist entry.
var ParseEntry = m.ParseEntry

// New wires a Suite with the default collaborators, reporting to stdout.
func New(cfg Config) *Suite {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput wires a Suite that reports to out.
func NewWithOutput(cfg Config, out io.Writer) *Suite {
	return domain.NewSuite(
		cfg,
		adapter.NewLocalGoSourceAdapter(),
		adapter.NewCPUDetector(),
		adapter.NewReportStore(),
		controller.NewConsoleReporter(out),
	)
}

// NewComparator creates a rendezvous for n concurrent participants.
func NewComparator(n int) *Comparator {
	return domain.NewComparator(n)
}

// NewRegistry creates a stream redirection registry with stdout and stderr
// preregistered.
func NewRegistry() *Registry {
	return redirect.NewRegistry()
}

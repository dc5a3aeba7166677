package model

// CaseStatus is the reported status of one test case.
type CaseStatus string

const (
	// StatusPassed indicates all invocations completed without failure.
	StatusPassed CaseStatus = "passed"
	// StatusFailed indicates a failure or error was recorded.
	StatusFailed CaseStatus = "failed"
	// StatusSkipped indicates a skip request won the aggregation.
	StatusSkipped CaseStatus = "skipped"
)

// CaseReport records how a single case was executed.
type CaseReport struct {
	Name       string     `yaml:"name"`
	Parallel   bool       `yaml:"parallel"`
	Workers    int        `yaml:"workers"`
	Iterations int        `yaml:"iterations"`
	Status     CaseStatus `yaml:"status"`

	// Reason explains why a case did not run in parallel.
	Reason string `yaml:"reason,omitempty"`

	// Message carries the failure or skip detail.
	Message string `yaml:"message,omitempty"`
}

// RunReport aggregates one suite run.
type RunReport struct {
	Cases          []CaseReport `yaml:"cases"`
	Parallelized   int          `yaml:"parallelized"`
	SingleThreaded int          `yaml:"single_threaded"`
	Skipped        int          `yaml:"skipped"`
}

// Record appends a case report and updates the aggregate counters.
func (r *RunReport) Record(cr CaseReport) {
	r.Cases = append(r.Cases, cr)

	switch {
	case cr.Status == StatusSkipped && !cr.Parallel && cr.Reason != "":
		// Thread-unsafe case skipped under skip-unsafe mode.
		r.Skipped++
	case cr.Parallel:
		r.Parallelized++
	default:
		r.SingleThreaded++
	}
}

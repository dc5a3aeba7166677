package model

import "fmt"

// OutcomeKind tags what a single invocation of a test body produced.
type OutcomeKind int

const (
	// OutcomeIgnored covers clean returns and warnings: never fails a case.
	OutcomeIgnored OutcomeKind = iota
	// OutcomeError is a generic error or recovered panic.
	OutcomeError
	// OutcomeSkip is an explicit request to report the case as skipped.
	OutcomeSkip
	// OutcomeFail is an explicit failure request.
	OutcomeFail
)

// Outcome is the tagged result of one invocation. Aggregation across workers
// applies the precedence skip > fail > first error.
type Outcome struct {
	Kind    OutcomeKind
	Err     error
	Message string
}

// SkipError requests that the whole case be reported as skipped.
type SkipError struct {
	Message string
}

func (e *SkipError) Error() string {
	return "skip requested: " + e.Message
}

// Skip returns an error the harness surfaces as a skip request.
func Skip(msg string) error {
	return &SkipError{Message: msg}
}

// FailError is an explicit failure request, distinct from an ordinary error
// so it takes precedence during aggregation.
type FailError struct {
	Message string
}

func (e *FailError) Error() string {
	return e.Message
}

// Failf returns an error the harness surfaces as an explicit failure.
func Failf(format string, args ...any) error {
	return &FailError{Message: fmt.Sprintf(format, args...)}
}

// WarningError flags a condition worth noting that must never fail the case.
type WarningError struct {
	Message string
}

func (e *WarningError) Error() string {
	return "warning: " + e.Message
}

// Warning returns an error the harness discards during aggregation.
func Warning(msg string) error {
	return &WarningError{Message: msg}
}

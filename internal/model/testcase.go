// Package model defines the value types shared across paratest components.
package model

import "context"

// Path represents a file system path.
type Path string

// WorkerContext carries per-invocation coordinates into a test body. Each
// worker receives its own copy; only the containers a body reaches through
// it may be shared.
type WorkerContext struct {
	Ctx context.Context

	// WorkerIndex identifies the worker thread, 0-based.
	WorkerIndex int

	// IterationIndex identifies the current repetition on this worker.
	IterationIndex int

	NWorkers    int
	NIterations int

	// ScratchDir is a directory private to this worker for the duration of
	// the case.
	ScratchDir Path
}

// TestBody is the replayable unit the harness invokes on every worker.
//
// A nil return means the invocation passed. Skip, Failf and Warning build
// errors the harness recognizes as explicit signals; any other error is a
// plain test error.
type TestBody func(wc *WorkerContext) error

// UnsafeAnnotation is an explicit "never parallelize" marker on a case.
type UnsafeAnnotation struct {
	Marked bool
	Reason string
}

// TestCase is one unit of work handed to the suite by the host framework.
type TestCase struct {
	Name string
	Body TestBody

	// NWorkers and NIterations override the configured defaults when > 0.
	NWorkers    int
	NIterations int

	Unsafe UnsafeAnnotation

	// Fixtures names the externally provided values the case consumes. The
	// suite crosses them against the thread-unsafe fixture set.
	Fixtures []string

	// EntryPC is the program counter of Body's entry point, used to locate
	// its source for classification. Filled in by Suite.Add when zero.
	EntryPC uintptr
}

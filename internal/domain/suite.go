package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"paratest.dev/pkg/paratest/internal/adapter"
	"paratest.dev/pkg/paratest/internal/controller"
	"paratest.dev/pkg/paratest/internal/domain/safety"
	m "paratest.dev/pkg/paratest/internal/model"
)

// DefaultUnsafeFixtures names the externally provided values that force
// single-threaded execution because they capture process-global state.
var DefaultUnsafeFixtures = []string{"capture-output", "env-patch", "chdir"}

// SuiteConfig carries the per-run configuration.
type SuiteConfig struct {
	// Workers is the default worker count per case; 0 auto-detects from the
	// usable CPU count.
	Workers int

	// Iterations is the default repetition count per worker.
	Iterations int

	// SkipUnsafe skips thread-unsafe cases entirely instead of running them
	// on one thread.
	SkipUnsafe bool

	Flags m.Flags

	// ExtraBlocklist extends the built-in blocklist.
	ExtraBlocklist []m.Entry

	// UnsafeFixtures overrides DefaultUnsafeFixtures when non-nil.
	UnsafeFixtures []string

	// Detector, when set, short-circuits classification for recognized
	// property-test callables.
	Detector safety.PropertyTestDetector

	// ReportsDir enables persisted run reports when non-empty.
	ReportsDir m.Path

	// IgnoreViolations downgrades runtime safety violations to warnings.
	IgnoreViolations bool

	Verbose bool
}

// Suite classifies registered cases and replays the safe ones concurrently,
// one case at a time. Thread-unsafe cases still run, single-threaded, with a
// visible reason.
type Suite struct {
	cfg            SuiteConfig
	classifier     *safety.Classifier
	harness        *Harness
	source         adapter.GoSourceAdapter
	cpu            adapter.CPUDetector
	store          adapter.ReportStore
	reporter       controller.Reporter
	monitor        *Monitor
	blocklist      *m.Blocklist
	unsafeFixtures map[string]struct{}
	cases          []m.TestCase
}

// NewSuite wires a Suite from its collaborators.
func NewSuite(
	cfg SuiteConfig,
	source adapter.GoSourceAdapter,
	cpu adapter.CPUDetector,
	store adapter.ReportStore,
	reporter controller.Reporter,
) *Suite {
	blocklist := m.NewBlocklist(m.BuiltinEntries(cfg.Flags)...)
	for _, entry := range cfg.ExtraBlocklist {
		blocklist.Add(entry)
	}

	fixtureNames := cfg.UnsafeFixtures
	if fixtureNames == nil {
		fixtureNames = DefaultUnsafeFixtures
	}

	unsafeFixtures := make(map[string]struct{}, len(fixtureNames))
	for _, name := range fixtureNames {
		unsafeFixtures[name] = struct{}{}
	}

	return &Suite{
		cfg:            cfg,
		classifier:     safety.NewClassifier(safety.NewVerdictCache(), cfg.Detector),
		harness:        NewHarness(),
		source:         source,
		cpu:            cpu,
		store:          store,
		reporter:       reporter,
		monitor:        NewMonitor(cfg.IgnoreViolations),
		blocklist:      blocklist,
		unsafeFixtures: unsafeFixtures,
	}
}

// Monitor returns the run's dynamic-safety signal sink.
func (s *Suite) Monitor() *Monitor {
	return s.monitor
}

// Add registers a case. The body's entry program counter is captured so the
// classifier can locate its source.
func (s *Suite) Add(tc m.TestCase) {
	if tc.EntryPC == 0 && tc.Body != nil {
		tc.EntryPC = reflect.ValueOf(tc.Body).Pointer()
	}

	s.cases = append(s.cases, tc)
}

// Run executes every registered case sequentially and returns the aggregate
// report. Case execution order is registration order.
func (s *Suite) Run(ctx context.Context) (m.RunReport, error) {
	var report m.RunReport

	for i := range s.cases {
		cr := s.runCase(ctx, &s.cases[i])
		report.Record(cr)
		s.reporter.CaseResult(cr)
	}

	s.reporter.Summary(report, s.cfg.Verbose)

	if s.cfg.ReportsDir != "" {
		if _, err := s.store.Save(s.cfg.ReportsDir, report); err != nil {
			slog.Warn("failed to persist run report", "error", err)
		}
	}

	return report, nil
}

func (s *Suite) runCase(ctx context.Context, tc *m.TestCase) m.CaseReport {
	workers := tc.NWorkers
	if workers <= 0 {
		workers = s.defaultWorkers()
	}

	iterations := tc.NIterations
	if iterations <= 0 {
		iterations = s.cfg.Iterations
	}

	if iterations <= 0 {
		iterations = 1
	}

	reason := ""

	if workers > 1 {
		if unsafe, why := s.caseUnsafe(tc); unsafe {
			if s.cfg.SkipUnsafe {
				return m.CaseReport{
					Name:       tc.Name,
					Workers:    1,
					Iterations: iterations,
					Status:     m.StatusSkipped,
					Reason:     why,
				}
			}

			workers, reason = 1, why
		}
	}

	body := tc.Body
	if workers > 1 || iterations > 1 {
		body = s.harness.Wrap(body, workers, iterations)
	}

	scratch, err := os.MkdirTemp("", "paratest-*")
	if err != nil {
		slog.Warn("no scratch dir for case", "case", tc.Name, "error", err)
		scratch = ""
	} else {
		defer os.RemoveAll(scratch)
	}

	wc := &m.WorkerContext{
		Ctx:         ctx,
		NWorkers:    workers,
		NIterations: iterations,
		ScratchDir:  m.Path(scratch),
	}

	cr := m.CaseReport{
		Name:       tc.Name,
		Parallel:   workers > 1,
		Workers:    workers,
		Iterations: iterations,
		Reason:     reason,
	}

	switch out := invoke(body, wc); out.Kind {
	case m.OutcomeSkip:
		cr.Status = m.StatusSkipped
		cr.Message = out.Message
	case m.OutcomeFail, m.OutcomeError:
		cr.Status = m.StatusFailed
		cr.Message = out.Err.Error()
	default:
		cr.Status = m.StatusPassed
	}

	return cr
}

// caseUnsafe applies the decision ladder: explicit annotation, then unsafe
// fixtures, then static classification. Classification failures degrade to
// "assume safe".
func (s *Suite) caseUnsafe(tc *m.TestCase) (bool, string) {
	if tc.Unsafe.Marked {
		reason := tc.Unsafe.Reason
		if reason == "" {
			reason = "uses the thread-unsafe annotation"
		}

		return true, reason
	}

	if used := s.unsafeFixturesUsed(tc); len(used) > 0 {
		return true, fmt.Sprintf("uses thread-unsafe fixture(s): %s", strings.Join(used, ", "))
	}

	callable, err := s.source.ResolveFunction(tc.EntryPC)
	if err != nil {
		slog.Warn("could not resolve test source, assuming thread-safe",
			"case", tc.Name, "error", err)

		return false, ""
	}

	verdict := s.classifier.Classify(callable, s.blocklist, s.cfg.Flags)

	return verdict.Unsafe, verdict.Reason
}

func (s *Suite) unsafeFixturesUsed(tc *m.TestCase) []string {
	var used []string

	for _, name := range tc.Fixtures {
		if _, ok := s.unsafeFixtures[name]; ok {
			used = append(used, name)
		}
	}

	return used
}

func (s *Suite) defaultWorkers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}

	if n := s.cpu.LogicalCPUs(); n > 0 {
		return n
	}

	return 1
}

package domain

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paratest.dev/pkg/paratest/internal/adapter"
	m "paratest.dev/pkg/paratest/internal/model"
)

// The bodies below are top-level functions so their source can be resolved
// from the program counter during classification.

func cleanBody(_ *m.WorkerContext) error {
	return nil
}

func envMutatingBody(wc *m.WorkerContext) error {
	if wc == nil {
		// Unreachable at runtime; the call is what matters.
		return os.Setenv("PARATEST_PROBE", "1")
	}

	return nil
}

func failingBody(_ *m.WorkerContext) error {
	return errors.New("boom")
}

func skippingBody(_ *m.WorkerContext) error {
	return m.Skip("not on this platform")
}

type fixedCPUs struct{ n int }

func (d fixedCPUs) LogicalCPUs() int { return d.n }

type discardStore struct{ saves int }

func (s *discardStore) Save(m.Path, m.RunReport) (m.Path, error) {
	s.saves++
	return "", nil
}

func (s *discardStore) Load(m.Path) (m.RunReport, error) {
	return m.RunReport{}, nil
}

type recordingReporter struct {
	cases     []m.CaseReport
	summaries int
}

func (r *recordingReporter) CaseResult(cr m.CaseReport)    { r.cases = append(r.cases, cr) }
func (r *recordingReporter) CheckResult(string, m.Verdict) {}
func (r *recordingReporter) Summary(m.RunReport, bool)     { r.summaries++ }

func newTestSuite(cfg SuiteConfig) (*Suite, *recordingReporter, *discardStore) {
	reporter := &recordingReporter{}
	store := &discardStore{}

	s := NewSuite(cfg, adapter.NewLocalGoSourceAdapter(), fixedCPUs{n: 2}, store, reporter)

	return s, reporter, store
}

func TestSuiteRunsSafeCaseInParallel(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2, Iterations: 2})
	s.Add(m.TestCase{Name: "clean", Body: cleanBody})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	cr := reporter.cases[0]

	assert.True(t, cr.Parallel)
	assert.Equal(t, 2, cr.Workers)
	assert.Equal(t, 2, cr.Iterations)
	assert.Equal(t, m.StatusPassed, cr.Status)
	assert.Equal(t, 1, report.Parallelized)
	assert.Equal(t, 1, reporter.summaries)
}

func TestSuiteDemotesUnsafeCaseToSingleThread(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2})
	s.Add(m.TestCase{Name: "env-mutator", Body: envMutatingBody})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	cr := reporter.cases[0]

	assert.False(t, cr.Parallel)
	assert.Equal(t, 1, cr.Workers)
	assert.Equal(t, m.StatusPassed, cr.Status)
	assert.Contains(t, cr.Reason, "os.Setenv")
	assert.Equal(t, 1, report.SingleThreaded)
}

func TestSuiteSkipUnsafe(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2, SkipUnsafe: true})
	s.Add(m.TestCase{Name: "env-mutator", Body: envMutatingBody})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	assert.Equal(t, m.StatusSkipped, reporter.cases[0].Status)
	assert.Equal(t, 1, report.Skipped)
}

func TestSuiteDecisionLadder(t *testing.T) {
	t.Run("annotation beats classification", func(t *testing.T) {
		s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2})
		s.Add(m.TestCase{
			Name:   "annotated",
			Body:   cleanBody,
			Unsafe: m.UnsafeAnnotation{Marked: true, Reason: "touches global registry"},
		})

		_, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, reporter.cases, 1)
		assert.False(t, reporter.cases[0].Parallel)
		assert.Equal(t, "touches global registry", reporter.cases[0].Reason)
	})

	t.Run("annotation without reason gets a default", func(t *testing.T) {
		s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2})
		s.Add(m.TestCase{Name: "annotated", Body: cleanBody, Unsafe: m.UnsafeAnnotation{Marked: true}})

		_, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "uses the thread-unsafe annotation", reporter.cases[0].Reason)
	})

	t.Run("unsafe fixture forces single thread", func(t *testing.T) {
		s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2})
		s.Add(m.TestCase{Name: "captures", Body: cleanBody, Fixtures: []string{"capture-output"}})

		_, err := s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, reporter.cases, 1)
		assert.False(t, reporter.cases[0].Parallel)
		assert.Contains(t, reporter.cases[0].Reason, "capture-output")
	})

	t.Run("custom fixture list replaces the default", func(t *testing.T) {
		s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2, UnsafeFixtures: []string{"database"}})
		s.Add(m.TestCase{Name: "captures", Body: cleanBody, Fixtures: []string{"capture-output"}})

		_, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.True(t, reporter.cases[0].Parallel, "capture-output is no longer unsafe")
	})
}

type forcedUnsafeDetector struct{}

func (forcedUnsafeDetector) Verdict(*m.Callable, m.Flags) (bool, m.Verdict) {
	return true, m.UnsafeVerdict("uses property-based testing (forced unsafe)")
}

func TestSuiteConfiguredDetector(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2, Detector: forcedUnsafeDetector{}})
	s.Add(m.TestCase{Name: "property", Body: cleanBody})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	assert.False(t, reporter.cases[0].Parallel)
	assert.Contains(t, reporter.cases[0].Reason, "property-based testing")
}

func TestSuiteFailureAndSkipStatuses(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 2})
	s.Add(m.TestCase{Name: "failing", Body: failingBody})
	s.Add(m.TestCase{Name: "skipping", Body: skippingBody})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 2)
	assert.Equal(t, m.StatusFailed, reporter.cases[0].Status)
	assert.Equal(t, "boom", reporter.cases[0].Message)
	assert.Equal(t, m.StatusSkipped, reporter.cases[1].Status)
	assert.Equal(t, "not on this platform", reporter.cases[1].Message)
	assert.Len(t, report.Cases, 2)
}

func TestSuitePerCaseOverrides(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{Workers: 4, Iterations: 4})
	s.Add(m.TestCase{Name: "narrow", Body: cleanBody, NWorkers: 2, NIterations: 1})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	assert.Equal(t, 2, reporter.cases[0].Workers)
	assert.Equal(t, 1, reporter.cases[0].Iterations)
}

func TestSuiteAutoDetectsWorkers(t *testing.T) {
	s, reporter, _ := newTestSuite(SuiteConfig{})
	s.Add(m.TestCase{Name: "clean", Body: cleanBody})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.cases, 1)
	assert.Equal(t, 2, reporter.cases[0].Workers, "falls back to the detected CPU count")
}

func TestSuitePersistsReportWhenConfigured(t *testing.T) {
	s, _, store := newTestSuite(SuiteConfig{Workers: 2})
	s.cfg.ReportsDir = m.Path(t.TempDir())
	s.Add(m.TestCase{Name: "clean", Body: cleanBody})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, store.saves)
}

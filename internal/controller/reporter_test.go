package controller

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	m "paratest.dev/pkg/paratest/internal/model"
)

func TestCaseResultLines(t *testing.T) {
	cases := []struct {
		name string
		cr   m.CaseReport
		want []string
	}{
		{
			name: "parallel pass",
			cr:   m.CaseReport{Name: "TestFast", Parallel: true, Status: m.StatusPassed},
			want: []string{"TestFast", "PARALLEL PASSED"},
		},
		{
			name: "single-threaded pass with reason",
			cr: m.CaseReport{
				Name:   "TestEnv",
				Status: m.StatusPassed,
				Reason: "calls thread-unsafe function: os.Setenv",
			},
			want: []string{"TestEnv", "PASSED", "[thread-unsafe]: calls thread-unsafe function: os.Setenv"},
		},
		{
			name: "failure with message",
			cr: m.CaseReport{
				Name:    "TestBroken",
				Status:  m.StatusFailed,
				Message: "boom",
			},
			want: []string{"TestBroken", "FAILED", "(boom)"},
		},
		{
			name: "skip",
			cr:   m.CaseReport{Name: "TestSkipped", Status: m.StatusSkipped, Message: "not here"},
			want: []string{"TestSkipped", "SKIPPED", "(not here)"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			NewConsoleReporter(&out).CaseResult(tc.cr)

			for _, want := range tc.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestCheckResult(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleReporter(&out)

	r.CheckResult("pkg.TestClean", m.Verdict{})
	r.CheckResult("pkg.TestEnv", m.UnsafeVerdict("calls thread-unsafe function: os.Setenv"))

	assert.Contains(t, out.String(), "pkg.TestClean parallel")
	assert.Contains(t, out.String(), "pkg.TestEnv single-threaded: calls thread-unsafe function: os.Setenv")
}

func TestSummary(t *testing.T) {
	t.Run("all parallel", func(t *testing.T) {
		var out bytes.Buffer

		report := m.RunReport{
			Parallelized: 2,
			Cases: []m.CaseReport{
				{Name: "TestA", Parallel: true, Status: m.StatusPassed},
				{Name: "TestB", Parallel: true, Status: m.StatusPassed},
			},
		}

		NewConsoleReporter(&out).Summary(report, false)

		assert.Contains(t, out.String(), "All cases ran in parallel!")
	})

	t.Run("verbose lists demotion reasons", func(t *testing.T) {
		var out bytes.Buffer

		report := m.RunReport{
			Parallelized:   1,
			SingleThreaded: 1,
			Cases: []m.CaseReport{
				{Name: "TestA", Parallel: true, Status: m.StatusPassed},
				{Name: "TestB", Status: m.StatusPassed, Reason: "uses the thread-unsafe annotation"},
			},
		}

		NewConsoleReporter(&out).Summary(report, true)

		assert.Contains(t, out.String(),
			"TestB did not run in parallel because it uses the thread-unsafe annotation")
		assert.NotContains(t, out.String(), "All cases ran in parallel!")
	})

	t.Run("quiet omits reasons", func(t *testing.T) {
		var out bytes.Buffer

		report := m.RunReport{
			SingleThreaded: 1,
			Cases: []m.CaseReport{
				{Name: "TestB", Status: m.StatusPassed, Reason: "uses the thread-unsafe annotation"},
			},
		}

		NewConsoleReporter(&out).Summary(report, false)

		assert.NotContains(t, out.String(), "did not run in parallel")
	})
}

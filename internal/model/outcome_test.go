package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeErrorsUnwrap(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		err := fmt.Errorf("body: %w", Skip("needs root"))

		var skip *SkipError
		require.ErrorAs(t, err, &skip)
		assert.Equal(t, "needs root", skip.Message)
	})

	t.Run("fail", func(t *testing.T) {
		err := fmt.Errorf("body: %w", Failf("got %d", 3))

		var fail *FailError
		require.ErrorAs(t, err, &fail)
		assert.Equal(t, "got 3", fail.Message)
	})

	t.Run("warning", func(t *testing.T) {
		err := fmt.Errorf("body: %w", Warning("flaky dependency"))

		var warn *WarningError
		require.ErrorAs(t, err, &warn)
		assert.Equal(t, "flaky dependency", warn.Message)
	})

	t.Run("plain errors match nothing", func(t *testing.T) {
		err := errors.New("boom")

		var skip *SkipError
		assert.False(t, errors.As(err, &skip))
	})
}

func TestRunReportRecord(t *testing.T) {
	var report RunReport

	report.Record(CaseReport{Name: "a", Parallel: true, Status: StatusPassed})
	report.Record(CaseReport{Name: "b", Parallel: false, Status: StatusPassed})
	report.Record(CaseReport{Name: "c", Status: StatusSkipped, Reason: "uses the thread-unsafe annotation"})

	assert.Len(t, report.Cases, 3)
	assert.Equal(t, 1, report.Parallelized)
	assert.Equal(t, 1, report.SingleThreaded)
	assert.Equal(t, 1, report.Skipped)
}

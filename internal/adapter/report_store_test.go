package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "paratest.dev/pkg/paratest/internal/model"
)

func TestReportStoreRoundTrip(t *testing.T) {
	store := NewReportStore()
	dir := m.Path(t.TempDir())

	report := m.RunReport{
		Parallelized:   1,
		SingleThreaded: 1,
		Cases: []m.CaseReport{
			{
				Name:       "TestFast",
				Parallel:   true,
				Workers:    4,
				Iterations: 2,
				Status:     m.StatusPassed,
			},
			{
				Name:       "TestEnv",
				Workers:    1,
				Iterations: 1,
				Status:     m.StatusPassed,
				Reason:     "calls thread-unsafe function: os.Setenv",
			},
		},
	}

	path, err := store.Save(dir, report)
	require.NoError(t, err)
	assert.FileExists(t, string(path))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, report, loaded)
}

func TestReportStoreLoadMissing(t *testing.T) {
	store := NewReportStore()

	_, err := store.Load(m.Path(t.TempDir()) + "/absent.yaml")
	assert.Error(t, err)
}

func TestReportStoreSaveBadDir(t *testing.T) {
	store := NewReportStore()

	// A regular file where a directory is needed.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := store.Save(m.Path(filepath.Join(blocker, "reports")), m.RunReport{})
	assert.Error(t, err)
}

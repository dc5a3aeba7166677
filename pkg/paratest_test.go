package pkg

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calls atomic.Int32

func countingBody(_ *WorkerContext) error {
	calls.Add(1)
	return nil
}

func TestPublicSuiteRoundTrip(t *testing.T) {
	calls.Store(0)

	var out bytes.Buffer

	s := NewWithOutput(Config{Workers: 2, Iterations: 2}, &out)
	s.Add(TestCase{Name: "counting", Body: countingBody})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, 1, report.Parallelized)
	assert.Contains(t, out.String(), "counting")
}

func TestPublicComparator(t *testing.T) {
	c := NewComparator(2)

	done := make(chan error, 1)
	go func() {
		done <- c.Compare(map[string]any{"v": 7})
	}()

	require.NoError(t, firstNonNil(c.Compare(map[string]any{"v": 7}), <-done))
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func TestPublicRedirect(t *testing.T) {
	r := NewRegistry()

	var def, captured bytes.Buffer
	r.Register("stdout", &def)

	w, err := r.Writer("stdout")
	require.NoError(t, err)

	handle, err := r.Redirect("stdout", &captured, ScopeGlobal)
	require.NoError(t, err)

	fmt.Fprint(w, "x")
	handle.Release()
	fmt.Fprint(w, "y")

	assert.Equal(t, "x", captured.String())
	assert.Equal(t, "y", def.String())
}

package domain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	m "paratest.dev/pkg/paratest/internal/model"
)

// Spawner starts worker threads. The default spawner launches an
// OS-thread-locked goroutine and never fails; the seam exists so
// thread-creation failure paths stay real and testable.
type Spawner interface {
	Spawn(fn func()) error
}

type osThreadSpawner struct{}

// NewOSThreadSpawner constructs the default spawner. Each worker is pinned
// to its own OS thread for the duration of the case, so interleaving is
// preemptive rather than cooperative.
func NewOSThreadSpawner() Spawner {
	return osThreadSpawner{}
}

func (osThreadSpawner) Spawn(fn func()) error {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		fn()
	}()

	return nil
}

// Harness replays a test body on several workers in lock-step to expose
// data races.
type Harness struct {
	spawner Spawner
	tuner   *schedulerTuner
}

// NewHarness constructs a Harness with the default OS-thread spawner.
func NewHarness() *Harness {
	return &Harness{spawner: NewOSThreadSpawner(), tuner: newSchedulerTuner()}
}

// NewHarnessWithSpawner constructs a Harness with a custom spawner.
func NewHarnessWithSpawner(spawner Spawner) *Harness {
	return &Harness{spawner: spawner, tuner: newSchedulerTuner()}
}

// Wrap returns a replacement body that runs body nWorkers x nIterations
// times: every worker repeats the body nIterations times, and every
// iteration starts in strict lock-step across all workers.
func (h *Harness) Wrap(body m.TestBody, nWorkers, nIterations int) m.TestBody {
	if nWorkers < 1 {
		nWorkers = 1
	}

	if nIterations < 1 {
		nIterations = 1
	}

	return func(base *m.WorkerContext) error {
		return h.run(base, body, nWorkers, nIterations)
	}
}

// outcomeSet collects every worker's outcomes. Appends race across workers
// and are serialized by the mutex.
type outcomeSet struct {
	mu     sync.Mutex
	errors []error
	skip   *string
	fail   error
}

func (s *outcomeSet) record(out m.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch out.Kind {
	case m.OutcomeError:
		s.errors = append(s.errors, out.Err)
	case m.OutcomeSkip:
		msg := out.Message
		s.skip = &msg // last skip wins
	case m.OutcomeFail:
		s.fail = out.Err // last failure wins
	}
}

// reduce folds all outcomes into one result: a skip beats a failure beats
// the first recorded error.
func (s *outcomeSet) reduce() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skip != nil {
		return &m.SkipError{Message: *s.skip}
	}

	if s.fail != nil {
		return s.fail
	}

	if len(s.errors) > 0 {
		return s.errors[0]
	}

	return nil
}

func (h *Harness) run(base *m.WorkerContext, body m.TestBody, nWorkers, nIterations int) error {
	outcomes := &outcomeSet{}
	barrier := NewBarrier(nWorkers)

	h.tuner.tune(nWorkers)
	defer h.tuner.restore()

	var (
		wg       sync.WaitGroup
		spawnErr error
	)

	started := 0

	for i := 0; i < nWorkers; i++ {
		workerIndex := i

		wg.Add(1)

		err := h.spawner.Spawn(func() {
			defer wg.Done()
			runWorker(base, body, barrier, outcomes, workerIndex, nWorkers, nIterations)
		})
		if err != nil {
			wg.Done()

			spawnErr = fmt.Errorf("spawn worker %d: %w", i, err)

			break
		}

		started++
	}

	if started < nWorkers {
		// Workers already parked on the barrier must not wait for threads
		// that never launched.
		barrier.Abort()
	}

	wg.Wait()

	if spawnErr != nil {
		return spawnErr
	}

	return outcomes.reduce()
}

// runWorker executes all iterations for one worker. Workers never exit early
// on a sibling's failure; aggregation happens only after every worker has
// joined.
func runWorker(base *m.WorkerContext, body m.TestBody, barrier *Barrier, outcomes *outcomeSet, workerIndex, nWorkers, nIterations int) {
	wc := *base
	wc.WorkerIndex = workerIndex
	wc.NWorkers = nWorkers
	wc.NIterations = nIterations

	if base.ScratchDir != "" && nWorkers > 1 {
		dir := filepath.Join(string(base.ScratchDir), fmt.Sprintf("worker_%d", workerIndex))
		if err := os.MkdirAll(dir, 0o755); err == nil {
			wc.ScratchDir = m.Path(dir)
		}
	}

	for iteration := 0; iteration < nIterations; iteration++ {
		if err := barrier.Wait(); err != nil {
			outcomes.record(m.Outcome{Kind: m.OutcomeError, Err: err})
			return
		}

		wc.IterationIndex = iteration
		outcomes.record(invoke(body, &wc))
	}
}

// invoke runs one repetition, converting a panic or signal error into a
// tagged outcome.
func invoke(body m.TestBody, wc *m.WorkerContext) (out m.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = m.Outcome{Kind: m.OutcomeError, Err: fmt.Errorf("test body panicked: %v", r)}
		}
	}()

	return classifyOutcome(body(wc))
}

func classifyOutcome(err error) m.Outcome {
	if err == nil {
		return m.Outcome{Kind: m.OutcomeIgnored}
	}

	var warn *m.WarningError
	if errors.As(err, &warn) {
		return m.Outcome{Kind: m.OutcomeIgnored}
	}

	var skip *m.SkipError
	if errors.As(err, &skip) {
		return m.Outcome{Kind: m.OutcomeSkip, Message: skip.Message}
	}

	var fail *m.FailError
	if errors.As(err, &fail) {
		return m.Outcome{Kind: m.OutcomeFail, Err: fail}
	}

	return m.Outcome{Kind: m.OutcomeError, Err: err}
}

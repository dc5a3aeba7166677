package domain

import (
	"fmt"
	"log/slog"
	"runtime"
)

// maxProcsCeiling rejects ladder candidates that would oversubscribe the
// runtime scheduler beyond any useful interleaving gain.
const maxProcsCeiling = 1024

// schedulerTuner widens the runtime scheduler while a case replays, so
// barrier-released workers can truly preempt each other. The most aggressive
// candidate is tried first; if the setter rejects it, progressively tamer
// candidates follow. The original setting is restored unconditionally.
type schedulerTuner struct {
	set   func(int) (int, error)
	prev  int
	tuned bool
}

func newSchedulerTuner() *schedulerTuner {
	return &schedulerTuner{set: setMaxProcs}
}

func setMaxProcs(n int) (int, error) {
	if n < 1 || n > maxProcsCeiling {
		return 0, fmt.Errorf("GOMAXPROCS %d out of range [1, %d]", n, maxProcsCeiling)
	}

	return runtime.GOMAXPROCS(n), nil
}

// tune applies the first accepted candidate for nWorkers workers. restore
// must run afterwards regardless of how the replay ended.
func (t *schedulerTuner) tune(nWorkers int) {
	for _, candidate := range []int{nWorkers * 4, nWorkers * 2, nWorkers} {
		prev, err := t.set(candidate)
		if err != nil {
			continue
		}

		t.prev = prev
		t.tuned = true

		return
	}
}

func (t *schedulerTuner) restore() {
	if !t.tuned {
		return
	}

	if _, err := t.set(t.prev); err != nil {
		slog.Warn("failed to restore scheduler width", "value", t.prev, "error", err)
	}

	t.tuned = false
}

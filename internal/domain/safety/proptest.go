package safety

import (
	"strconv"
	"strings"

	m "paratest.dev/pkg/paratest/internal/model"
)

// PropertyTestDetector short-circuits classification for callables that
// belong to a property-based testing harness whose thread-safety is
// versioned externally. When recognized, its verdict replaces syntax
// analysis entirely.
type PropertyTestDetector interface {
	Verdict(c *m.Callable, flags m.Flags) (recognized bool, verdict m.Verdict)
}

// HarnessDetector recognizes property-test callables by the harness module
// their file imports. The harness execution engine is considered safe to
// drive from multiple goroutines starting at MinSafeVersion.
type HarnessDetector struct {
	// Module is the harness import path.
	Module string

	// Version is the harness version present in the build.
	Version string

	// MinSafeVersion is the first version with a thread-safe engine.
	MinSafeVersion string
}

// Verdict implements PropertyTestDetector.
func (d *HarnessDetector) Verdict(c *m.Callable, flags m.Flags) (bool, m.Verdict) {
	if c == nil || !d.uses(c) {
		return false, m.Verdict{}
	}

	if flags.PropertyTestsUnsafe {
		return true, m.UnsafeVerdict("uses property-based testing (forced unsafe)")
	}

	if compareVersions(d.Version, d.MinSafeVersion) < 0 {
		return true, m.UnsafeVerdict(
			"uses property-based testing (" + d.Module + " " + d.Version +
				" predates thread-safe execution)")
	}

	return true, m.Verdict{}
}

func (d *HarnessDetector) uses(c *m.Callable) bool {
	for _, modulePath := range c.Imports {
		if modulePath == d.Module {
			return true
		}
	}

	return false
}

// compareVersions compares dotted numeric versions, returning -1, 0 or 1.
// Missing segments count as zero; non-numeric segments compare as zero.
func compareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}

		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}

		if av != bv {
			if av < bv {
				return -1
			}

			return 1
		}
	}

	return 0
}

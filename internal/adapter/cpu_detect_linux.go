//go:build linux

package adapter

import "golang.org/x/sys/unix"

// affinityCPUs counts the CPUs in the process scheduler affinity mask.
func affinityCPUs() (int, bool) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, false
	}

	return set.Count(), true
}

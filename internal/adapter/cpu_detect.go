package adapter

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// CPUDetector reports how many logical CPUs the current process may use,
// which becomes the worker count when the host asks for "auto".
type CPUDetector interface {
	LogicalCPUs() int
}

type localCPUDetector struct{}

// NewCPUDetector constructs a detector for the local platform.
func NewCPUDetector() CPUDetector {
	return &localCPUDetector{}
}

// LogicalCPUs probes, in order: the scheduler affinity mask, the cgroup CPU
// quota, and finally the raw CPU count. The first usable answer wins.
func (d *localCPUDetector) LogicalCPUs() int {
	if n, ok := affinityCPUs(); ok && n > 0 {
		return n
	}

	if n, ok := cgroupQuotaCPUs(); ok && n > 0 {
		return n
	}

	return runtime.NumCPU()
}

// cgroupQuotaCPUs derives a CPU count from the cgroup v2 quota file, rounding
// the quota/period ratio up. Absent or unlimited quotas report not-ok.
func cgroupQuotaCPUs() (int, bool) {
	data, err := os.ReadFile("/sys/fs/cgroup/cpu.max")
	if err != nil {
		return 0, false
	}

	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[0] == "max" {
		return 0, false
	}

	quota, err := strconv.Atoi(fields[0])
	if err != nil || quota <= 0 {
		return 0, false
	}

	period, err := strconv.Atoi(fields[1])
	if err != nil || period <= 0 {
		return 0, false
	}

	return (quota + period - 1) / period, true
}

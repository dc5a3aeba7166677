//go:build !linux

package adapter

// affinityCPUs is unsupported off Linux; the quota and NumCPU fallbacks apply.
func affinityCPUs() (int, bool) {
	return 0, false
}

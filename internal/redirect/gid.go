package redirect

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the current goroutine's id out of its stack trace
// header ("goroutine 123 [running]:"). The runtime does not expose the id
// directly; ids start at 1, so 0 is free to mean "global".
func goroutineID() uint64 {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)

	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}

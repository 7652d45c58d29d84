// Package pad provides cache-line padding for the handful of monitor
// fields that are CAS'd or loaded by every contending goroutine (owner,
// cxq, contentions). Keeping them on separate cache lines matters most on
// architectures with weaker store buffering; see cacheline_on.go and
// cacheline_off.go for the per-arch decision.
package pad

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is the padding unit used to separate hot monitor fields.
// Derived from golang.org/x/sys/cpu rather than a hardcoded constant so it
// tracks the actual detected line size on architectures that report one.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

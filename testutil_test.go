package objmon

import "sync/atomic"

// syncPoint is a small reusable barrier used to force deterministic
// interleavings in the concurrent scenario tests (e.g. "T2 must be parked
// on cxq before T1 calls wait"). It is the same generation-doubled-buffer
// technique used elsewhere in this package for reusable barriers, sized
// down to a test helper.
type syncPoint struct {
	_     noCopy
	state atomic.Uint64
	sema  [2]sema
}

// meet blocks until parties goroutines have called meet, then releases
// them all together and resets for reuse. Returns the arrival index.
func (b *syncPoint) meet(parties int) int {
	if parties <= 0 {
		panic("objmon: parties must be positive")
	}
	if parties == 1 {
		return 0
	}

	var spins int
	for {
		s := b.state.Load()
		gen := s >> 32
		count := uint32(s)

		if count == uint32(parties)-1 {
			next := (gen + 1) << 32
			if b.state.CompareAndSwap(s, next) {
				semaPtr := &b.sema[gen%2]
				for range count {
					semaPtr.release()
				}
				return int(count)
			}
		} else if b.state.CompareAndSwap(s, s+1) {
			b.sema[gen%2].acquire()
			return int(count)
		}
		delay(&spins)
	}
}

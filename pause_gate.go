package objmon

import (
	"sync/atomic"
)

// pauseGate lets operators pause and resume a Registry's background
// scavenger without tearing down its goroutines. A paused scavenger still
// runs its loop but blocks in waitRunning before each sweep.
//
// State:
//   - running: waitRunning returns immediately.
//   - paused: waitRunning blocks.
//
// It is zero-value usable (starts paused).
//
// pausedSweeps counts how many sweep attempts actually had to block here
// rather than finding the gate already open, which is what
// Registry.PausedSweeps reports to callers deciding whether an operator's
// Pause is actually holding back scavenging or just racing a Resume that
// already landed.
//
// Size: 24 bytes (8 byte state + 2*4 byte sema + 8 byte counter).
type pauseGate struct {
	_ noCopy
	// state 64-bit:
	//   Bit 63:    IsOpen (1 = Open, 0 = Close)
	//   Bit 32-62: Generation
	//   Bit 0-31:  Waiter Count
	state atomic.Uint64

	// sema is a double-buffered semaphore to prevent signal stealing
	// during rapid Open/Close cycles.
	sema [2]uint32

	pausedSweeps atomic.Uint64
}

const (
	gateOpenBit = 1 << 63
	// gateGenOne = 1 << 32
	gateCntMsk = 0xFFFFFFFF
)

// resume marks the scavenger running again and wakes every goroutine
// currently blocked in waitRunning.
func (e *pauseGate) resume() {
	for {
		s := e.state.Load()
		if s&gateOpenBit != 0 {
			// Already Open
			return
		}

		gen := (s >> 32) & 0x7FFFFFFF
		cnt := s & gateCntMsk

		// New state: Open=1, Gen=Same, Count=0
		// We clear count because we are about to wake them all up.
		next := gateOpenBit | (gen << 32)

		if e.state.CompareAndSwap(s, next) {
			if cnt > 0 {
				semaPtr := &e.sema[gen%2]
				for i := 0; i < int(cnt); i++ {
					runtime_semrelease(semaPtr, false, 0)
				}
			}
			return
		}
	}
}

// pause marks the scavenger paused; subsequent waitRunning calls block.
func (e *pauseGate) pause() {
	for {
		s := e.state.Load()
		if s&gateOpenBit == 0 {
			// Already Close
			return
		}

		// Preserve generation, but increment it for the NEW phase.
		// Old generation was 'gen'. New Close phase is 'gen+1'.
		gen := (s >> 32) & 0x7FFFFFFF

		// New state: Open=0, Gen=Gen+1, Count=0
		// Note: Count should be 0 here anyway if it was Open, but we force 0.
		// Handle wrapping of 31-bit generation
		nextGen := (gen + 1) & 0x7FFFFFFF
		next := nextGen << 32

		if e.state.CompareAndSwap(s, next) {
			return
		}
	}
}

// waitRunning blocks until the scavenger is resumed, returning immediately
// if it already is.
func (e *pauseGate) waitRunning() {
	for {
		s := e.state.Load()

		// If Open bit is 1, return immediately
		if s&gateOpenBit != 0 {
			return
		}

		// Not Open. Add to waiter count.
		if e.state.CompareAndSwap(s, s+1) {
			e.pausedSweeps.Add(1)
			gen := (s >> 32) & 0x7FFFFFFF
			runtime_semacquire(&e.sema[gen%2])
			// Upon wakeup, we loop again to double-check state or
			// mostly just return because we were woken by resume().
			// But since resume() leaves it running, returning is correct.
			//
			// However, if pause() happened quickly after resume(),
			// we technically satisfied the "wait until running" condition
			// even if it is now paused.
			return
		}
	}
}

// running reports whether the scavenger is currently unpaused.
func (e *pauseGate) running() bool {
	return e.state.Load()&gateOpenBit != 0
}

// pausedCount returns how many sweep attempts have blocked in waitRunning
// since the gate was created.
func (e *pauseGate) pausedCount() uint64 {
	return e.pausedSweeps.Load()
}

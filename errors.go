package objmon

import "errors"

// Sentinel errors surfaced by the monitor's external interface. Callers
// compare with errors.Is; none of these ever propagate CAS-loop internals.
var (
	// ErrNotOwner is returned by exit, wait, notify, and notifyAll when the
	// calling thread does not hold the monitor.
	ErrNotOwner = errors.New("objmon: calling thread is not the owner")

	// ErrInterrupted is returned by wait when the calling thread's
	// interrupt flag was observed set, either before parking or while
	// parked. It is cleared as a side effect of being observed.
	ErrInterrupted = errors.New("objmon: interrupted")

	// errDeflationRace is returned internally by enter when it loses a
	// race with an in-flight deflation. It never reaches caller code: the
	// exported Enter re-inflates through the registry and retries until it
	// wins a live monitor (or Inflate itself returns an error).
	errDeflationRace = errors.New("objmon: deflation race, retry against object header")
)

// EnterResult is returned by TryEnter to distinguish its three outcomes.
type EnterResult int

const (
	// Owned means the calling thread now holds the monitor.
	Owned EnterResult = iota
	// HasOwner means another thread currently owns the monitor.
	HasOwner
	// Interference means the attempt lost a CAS race and must be retried;
	// no ownership state changed as a result of this call.
	Interference
)

func (r EnterResult) String() string {
	switch r {
	case Owned:
		return "Owned"
	case HasOwner:
		return "HasOwner"
	case Interference:
		return "Interference"
	default:
		return "EnterResult(?)"
	}
}

// WaitResult reports how a call to Wait completed.
type WaitResult int

const (
	// Normal means the wait ended via notify, timeout, or a spurious wake.
	Normal WaitResult = iota
	// WaitInterrupted means the wait ended because the calling thread was
	// interrupted, either before parking or while parked.
	WaitInterrupted
)

func (r WaitResult) String() string {
	switch r {
	case Normal:
		return "Normal"
	case WaitInterrupted:
		return "WaitInterrupted"
	default:
		return "WaitResult(?)"
	}
}

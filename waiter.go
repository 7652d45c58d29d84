package objmon

import "sync/atomic"

// waiterState is the tagged variant a Waiter node moves through. Named
// Run/Cxq/Enter/Wait rather than an untyped byte so transitions are
// explicit at every call site.
type waiterState int32

const (
	stateRun waiterState = iota
	stateCxq
	stateEnter
	stateWait
)

// Waiter is a per-blocked-thread record. One is allocated (on the heap,
// since the queues publish it to other goroutines) by the calling
// goroutine's Enter or Wait call and is in use only as long as
// that call is in flight; nothing outside this package retains a pointer
// to it past the call that created it.
type Waiter struct {
	_ noCopy

	thread *Thread
	state  atomic.Int32

	// next/prev are list links whose meaning depends on state. While
	// state == stateCxq, next is written once by the pushing goroutine
	// before the CAS that publishes it and read only by the current
	// owner during a drain; the CAS itself establishes the necessary
	// happens-before edge, so no separate synchronization is needed on
	// the field itself. While state is stateEnter or stateWait, next and
	// prev are owned by whichever lock or exclusive-owner discipline
	// guards that list (EntryList: current owner only; WaitSet:
	// waitSetLock).
	next *Waiter
	prev *Waiter

	notified    bool
	notifierTid *Thread

	savedRecursions int64
	deferredRelock  int64
}

func newWaiter(self *Thread, state waiterState) *Waiter {
	w := &Waiter{thread: self}
	w.state.Store(int32(state))
	return w
}

func (w *Waiter) getState() waiterState { return waiterState(w.state.Load()) }
func (w *Waiter) setState(s waiterState) { w.state.Store(int32(s)) }

package objmon

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/talonreef/objmon/internal/pad"
)

// deflatedContentions is the sentinel contentions value published once a
// deflation has committed. Any negative value would do; the spec models
// it as "INT_MIN-ish" and this core uses the exact minimum so a single
// comparison (< 0) distinguishes "racing" from "dead" everywhere.
const deflatedContentions = math.MinInt32

// minParkRecheck and maxParkRecheck bound the exponential backoff the
// responsible thread's timed parks use to detect stranding: starting at
// 1ms and multiplied by 8 after each timed park, up to a 1 second ceiling.
const (
	minParkRecheck = time.Millisecond
	maxParkRecheck = time.Second
)

// monitorCore is the contended slow path shared by every inflated
// monitor, independent of what kind of object it backs. Registry wraps it
// with the object-specific weak handle and header-CAS collaborator; the
// core itself only ever deals in Thread identities and Waiter nodes.
type monitorCore struct {
	_ noCopy

	owner ownerSlot
	_     pad.CacheLine

	cxq atomic.Pointer[Waiter]
	_   pad.CacheLine

	contentions atomic.Int32
	_           pad.CacheLine

	// recursions, entryList, and responsible-clearing are touched only by
	// whichever goroutine currently holds owner; no atomic is needed, but
	// they must never be read by a non-owner.
	recursions int64
	entryList  *Waiter

	succ        heirSlot
	responsible heirSlot

	spinDuration atomic.Int32

	waitSetLock waitSetLock
	waitSet     *Waiter
	waiters     atomic.Int32

	safepoints SafepointPoller
	snapSeq    seqlock
}

func newMonitorCore(sp SafepointPoller) *monitorCore {
	if sp == nil {
		sp = noSafepoints{}
	}
	m := &monitorCore{safepoints: sp}
	m.spinDuration.Store(spinPoverty)
	return m
}

// IsBusy conservatively reports whether the monitor looks occupied. It may
// return true while the monitor is in fact idle (a racing contentions
// increment that is about to be undone), but never false while it is
// genuinely held or queued against.
func (m *monitorCore) IsBusy() bool {
	return m.contentions.Load() != 0 || m.waiters.Load() != 0 || !m.owner.isNone()
}

// deflated reports whether deflation has committed against this monitor.
func (m *monitorCore) deflated() bool {
	return m.contentions.Load() < 0
}

// enter acquires the monitor for self. It returns errDeflationRace if
// deflation won the race; the caller (Registry) must re-inflate and retry
// rather than surface this to user code.
func (m *monitorCore) enter(self *Thread) error {
	if m.owner.casNoneToSelf(self) {
		return nil
	}
	if m.owner.is(self) {
		m.snapSeq.writeBegin()
		m.recursions++
		m.snapSeq.writeEnd()
		return nil
	}
	if m.trySpin(self) {
		return nil
	}

	m.contentions.Add(1)
	if m.owner.isDeflater() && m.deflated() {
		m.contentions.Add(-1)
		return errDeflationRace
	}

	err := m.enterSlow(self)
	m.contentions.Add(-1)
	return err
}

func (m *monitorCore) enterSlow(self *Thread) error {
	if m.owner.casNoneToSelf(self) {
		return nil
	}
	if m.owner.isDeflater() {
		if m.owner.casDeflaterToSelf(self) {
			// Extra increment balances the deflater's cancellation-path
			// decrement; see the notes on the deflation handshake.
			m.contentions.Add(1)
			return nil
		}
	}
	if m.trySpin(self) {
		return nil
	}

	w := newWaiter(self, stateCxq)
	m.pushCxq(w)

	if w.next == nil && m.entryList == nil {
		m.responsible.casNoneToSelf(self)
	}

	m.parkLoop(self, w)

	m.unlinkAfterAcquire(w)

	if m.responsible.is(self) {
		m.responsible.clear()
	}
	return nil
}

// pushCxq CAS-loops w onto the head of cxq.
func (m *monitorCore) pushCxq(w *Waiter) {
	for {
		head := m.cxq.Load()
		w.next = head
		if m.cxq.CompareAndSwap(head, w) {
			return
		}
	}
}

// parkLoop blocks self until it can claim ownership, retrying after every
// wake per the enter protocol's timed-vs-indefinite park rule.
func (m *monitorCore) parkLoop(self *Thread, w *Waiter) {
	recheck := minParkRecheck
	for {
		if m.responsible.is(self) {
			self.park.park(recheck)
			recheck *= 8
			if recheck > maxParkRecheck {
				recheck = maxParkRecheck
			}
		} else {
			self.park.park(0)
		}

		if m.owner.casNoneToSelf(self) {
			return
		}
		if m.owner.isDeflater() && m.owner.casDeflaterToSelf(self) {
			m.contentions.Add(1)
			return
		}

		m.succ.clearIfSelf(self)
		m.trySpin(self)
		if m.owner.is(self) {
			return
		}
	}
}

// unlinkAfterAcquire removes w from whichever list still holds it once
// self has become the owner. EntryList removal is O(1); cxq removal may
// need to walk the LIFO to find w if it is not at the head.
func (m *monitorCore) unlinkAfterAcquire(w *Waiter) {
	switch w.getState() {
	case stateEnter:
		if w.prev != nil {
			w.prev.next = w.next
		} else {
			m.entryList = w.next
		}
		if w.next != nil {
			w.next.prev = w.prev
		}
	case stateCxq:
		for {
			if m.cxq.CompareAndSwap(w, w.next) {
				break
			}
			curr := m.cxq.Load()
			var prev *Waiter
			found := false
			for curr != nil {
				if curr == w {
					found = true
					break
				}
				prev = curr
				curr = curr.next
			}
			if found && prev != nil {
				prev.next = w.next
				break
			}
			if !found {
				break
			}
			// found && prev == nil: w raced back to head, retry the CAS.
		}
	}
	w.setState(stateRun)
}

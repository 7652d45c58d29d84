package objmon

import "time"

// wait implements the condition-variable protocol. self must already own
// the monitor. millis == 0 means park indefinitely until notified or
// interrupted.
func (m *monitorCore) wait(self *Thread, millis int64) (WaitResult, error) {
	if !m.owner.is(self) {
		return Normal, ErrNotOwner
	}
	if self.clearInterrupted() {
		return WaitInterrupted, ErrInterrupted
	}

	w := newWaiter(self, stateWait)

	m.waitSetLock.lock()
	waitSetAppend(&m.waitSet, w)
	m.waitSetLock.unlock()

	m.responsible.clear()

	w.savedRecursions = m.recursions
	m.snapSeq.writeBegin()
	m.recursions = 0
	m.snapSeq.writeEnd()
	m.waiters.Add(1)

	if err := m.exit(self); err != nil {
		// Ownership was verified above and cannot have changed underneath
		// a single-owner call; a non-nil error here indicates a broken
		// invariant, not a recoverable condition.
		panic("objmon: exit during wait observed non-owner: " + err.Error())
	}

	timeout := time.Duration(millis) * time.Millisecond
	if !w.notified {
		self.park.park(timeout)
	}

	m.waitSetLock.lock()
	if w.getState() == stateWait {
		waitSetUnlink(&m.waitSet, w)
		w.setState(stateRun)
	}
	m.waitSetLock.unlock()

	m.succ.clearIfSelf(self)

	wasNotified := w.notified

	if w.getState() == stateRun {
		if err := m.enter(self); err != nil {
			return Normal, err
		}
	} else {
		m.reenter(self, w)
	}

	m.snapSeq.writeBegin()
	m.recursions = w.savedRecursions + w.deferredRelock
	m.snapSeq.writeEnd()
	m.waiters.Add(-1)

	if !wasNotified && self.clearInterrupted() {
		return WaitInterrupted, ErrInterrupted
	}
	return Normal, nil
}

// reenter is the restricted form of enter used when a Waiter node was
// already transferred onto cxq or EntryList by notify: it skips the
// initial push since the node is already queued.
func (m *monitorCore) reenter(self *Thread, w *Waiter) {
	if m.owner.casNoneToSelf(self) {
		m.unlinkAfterAcquire(w)
		m.succ.clearIfSelf(self)
		return
	}

	for {
		self.park.park(0)

		if m.owner.casNoneToSelf(self) {
			break
		}
		m.succ.clearIfSelf(self)
	}

	m.unlinkAfterAcquire(w)
	m.succ.clearIfSelf(self)
}

// notify wakes at most one waiter, transferring it from WaitSet onto the
// owner's run queue (see transferToEntry) so the current owner unparks it
// on exit rather than racing it awake while the lock is still held.
func (m *monitorCore) notify(self *Thread) error {
	if !m.owner.is(self) {
		return ErrNotOwner
	}

	m.waitSetLock.lock()
	w := waitSetPopFront(&m.waitSet)
	m.waitSetLock.unlock()

	if w == nil {
		return nil
	}
	m.transferToEntry(self, w)
	return nil
}

// notifyAll wakes every waiter currently in WaitSet.
func (m *monitorCore) notifyAll(self *Thread) error {
	if !m.owner.is(self) {
		return ErrNotOwner
	}

	for {
		m.waitSetLock.lock()
		w := waitSetPopFront(&m.waitSet)
		m.waitSetLock.unlock()
		if w == nil {
			return nil
		}
		m.transferToEntry(self, w)
	}
}

// transferToEntry moves w from WaitSet onto the owner's run queue. When
// EntryList is still empty at notify time, w is appended there directly
// with state ENTER rather than pushed onto cxq, matching
// ObjectMonitor::INotify: a lone notified waiter should not have to pay
// the cxq->EntryList drain-and-reverse trip on the next exit when there
// is no list to merge with.
func (m *monitorCore) transferToEntry(self *Thread, w *Waiter) {
	w.notified = true
	w.notifierTid = self

	if m.entryList == nil {
		w.setState(stateEnter)
		w.prev = nil
		w.next = nil
		m.entryList = w
		return
	}

	w.setState(stateCxq)
	m.pushCxq(w)
}

// completeExit fully releases the monitor regardless of recursion depth,
// returning the depth so the caller can restore it later via
// reenterAfterWait.
func (m *monitorCore) completeExit(self *Thread) (int64, error) {
	if !m.owner.is(self) {
		return 0, ErrNotOwner
	}
	depth := m.recursions
	m.snapSeq.writeBegin()
	m.recursions = 0
	m.snapSeq.writeEnd()
	if err := m.exit(self); err != nil {
		return 0, err
	}
	return depth, nil
}

// reenterAfterWait reacquires the monitor and restores a recursion depth
// previously captured by completeExit.
func (m *monitorCore) reenterAfterWait(self *Thread, depth int64) error {
	if err := m.enter(self); err != nil {
		return err
	}
	m.snapSeq.writeBegin()
	m.recursions = depth
	m.snapSeq.writeEnd()
	return nil
}

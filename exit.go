package objmon

// exit releases the monitor held by self. If self is not the owner, it
// returns ErrNotOwner and changes nothing; pairing enter/exit calls
// correctly is the caller's responsibility, matching the spec's stance
// that an imbalance is undefined behavior at this layer.
func (m *monitorCore) exit(self *Thread) error {
	if !m.owner.is(self) {
		return ErrNotOwner
	}
	if m.recursions > 0 {
		m.snapSeq.writeBegin()
		m.recursions--
		m.snapSeq.writeEnd()
		return nil
	}

	m.responsible.clear()
	m.owner.storeNoneRelease()

	if (m.cxq.Load() == nil && m.entryList == nil) || m.succ.load() != nil {
		// 1-0 fast exit: admits potential stranding, repaired by the
		// responsible thread's timed re-checks.
		return nil
	}

	for {
		if !m.owner.casNoneToSelf(self) {
			// Another thread already took ownership; it inherits
			// succession duty.
			return nil
		}

		var w *Waiter
		if m.entryList != nil {
			w = m.entryList
		} else {
			head := m.drainCxqIntoEntryList()
			m.entryList = head
			if head == nil {
				if m.succ.load() != nil {
					m.owner.storeNoneRelease()
					continue
				}
				m.owner.storeNoneRelease()
				return nil
			}
			if m.succ.load() != nil {
				// Another waker (the thread currently holding succ) beat
				// us to servicing this drain; abdicate and let it pick up
				// EntryList's new head instead of double-waking.
				m.owner.storeNoneRelease()
				continue
			}
			w = head
		}

		m.exitEpilog(w)
		return nil
	}
}

// drainCxqIntoEntryList atomically detaches cxq and relinks it as
// EntryList, returning the new head or nil if cxq was empty. The spec
// leaves cxq→EntryList ordering unspecified beyond set membership; this
// core reverses the LIFO on drain so the earliest arrival becomes
// EntryList's head and retries first and the latest arrival ends up at
// the tail, rather than preserving raw LIFO order end to end.
func (m *monitorCore) drainCxqIntoEntryList() *Waiter {
	var head *Waiter
	for {
		head = m.cxq.Load()
		if head == nil {
			return nil
		}
		if m.cxq.CompareAndSwap(head, nil) {
			break
		}
	}

	// head..tail is newest-to-oldest. Reverse it into oldest-to-newest so
	// EntryList's head is the oldest arrival.
	var reversed *Waiter
	for n := head; n != nil; {
		next := n.next
		n.setState(stateEnter)
		n.next = reversed
		if reversed != nil {
			reversed.prev = n
		}
		n.prev = nil
		reversed = n
		n = next
	}

	return reversed
}

// exitEpilog installs w as the successor hint, releases the monitor, and
// unparks w. w must not be dereferenced by the caller after the release
// store: the awakened thread may acquire, exit, and drop its node at any
// point after that store is visible.
func (m *monitorCore) exitEpilog(w *Waiter) {
	m.succ.store(w.thread)
	target := w.thread
	m.owner.storeNoneRelease()
	target.park.unpark()
}

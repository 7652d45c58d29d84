package objmon

import "sync/atomic"

// seqlock is a single-writer, multi-reader sequence lock: readers retry
// instead of blocking, so a diagnostic Snapshot call never contends with
// the enter/exit fast path. Grounded on the counter-parity technique this
// package used to carry as a generic, unsafe-pointer-chunked primitive
// for arbitrary payloads; this version is trimmed to the one thing
// Snapshot needs, validating a torn multi-field struct copy.
type seqlock struct {
	_   noCopy
	seq atomic.Uint32
}

// writeBegin and writeEnd bracket a mutation the reader cares about
// staying torn-read-free. Called only from the (already uncommon)
// recursion-count mutation sites, never from the uncontended fast path.
func (l *seqlock) writeBegin() { l.seq.Add(1) }
func (l *seqlock) writeEnd()   { l.seq.Add(1) }

// readBegin returns the sequence number a reader should compare against
// after copying its snapshot. An odd number means a write is in progress;
// the caller spins until it observes an even one.
func (l *seqlock) readBegin() uint32 {
	for {
		s := l.seq.Load()
		if s&1 == 0 {
			return s
		}
	}
}

// readValid reports whether no write happened between start and now.
func (l *seqlock) readValid(start uint32) bool {
	return l.seq.Load() == start
}

// MonitorSnapshot is a point-in-time diagnostic view of a Monitor's
// externally visible state, analogous to what a thread-dump tool reads
// from a live monitor without pausing any thread that might be using it.
type MonitorSnapshot struct {
	Owned        bool
	Recursions   int64
	Contentions  int32
	Waiters      int32
	SpinDuration int32
	Deflated     bool
}

// Snapshot takes a best-effort, torn-read-free snapshot of m's state. It
// never blocks and never affects contended acquirers; under sustained
// concurrent recursion-count changes it retries a bounded number of times
// before returning its last read.
func (m *monitorCore) Snapshot() MonitorSnapshot {
	const maxRetries = 8
	var snap MonitorSnapshot
	for i := 0; i < maxRetries; i++ {
		start := m.snapSeq.readBegin()

		snap = MonitorSnapshot{
			Owned:        !m.owner.isNone() && !m.owner.isDeflater(),
			Recursions:   m.recursions,
			Contentions:  m.contentions.Load(),
			Waiters:      m.waiters.Load(),
			SpinDuration: m.spinDuration.Load(),
			Deflated:     m.deflated(),
		}

		if m.snapSeq.readValid(start) {
			return snap
		}
	}
	return snap
}

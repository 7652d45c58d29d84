package objmon

import "sync/atomic"

// HeaderCAS is the external "displaced mark word" collaborator. The core
// never interprets the bits it carries; it only ever swaps them, at
// inflation (installing a reference to the Monitor) and at deflation
// (restoring the saved neutral header). Failure of the CAS when restoring
// is not an error: another racer having already installed the same value
// is treated as success by the caller, per the idempotence invariant.
type HeaderCAS interface {
	CompareAndSwap(old, new uint64) bool
	Load() uint64
}

// headerWord is the default HeaderCAS backed by a plain atomic word,
// sufficient for callers that do not need to encode Monitor identity into
// the header bits themselves (tests, and any embedder that keeps its own
// object-to-monitor mapping outside the header).
type headerWord struct {
	v atomic.Uint64
}

func (h *headerWord) CompareAndSwap(old, new uint64) bool {
	return h.v.CompareAndSwap(old, new)
}

func (h *headerWord) Load() uint64 { return h.v.Load() }

// SafepointPoller is the external safepoint/GC-coordination collaborator.
// PollArmed reports whether a safepoint has been requested for the given
// thread; adaptive spin aborts early when it does, exactly as it would
// abort on the runtime's own safepoint machinery. A nil SafepointPoller is
// treated as "never armed".
type SafepointPoller interface {
	PollArmed(t *Thread) bool
}

type noSafepoints struct{}

func (noSafepoints) PollArmed(*Thread) bool { return false }

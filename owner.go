package objmon

import (
	"sync/atomic"
	"unsafe"
)

// Owner models the sum type {None, Thread(id), Deflater} from a single
// machine word. Real *Thread values are always non-nil, word-aligned
// pointers, so they never collide with the two sentinel values below. The
// spec's fourth case, a fast-lock stack address, belongs to the external
// lightweight-locking fast path and is out of scope for this core.
type ownerWord = uintptr

const (
	ownerNone     ownerWord = 0
	ownerDeflater ownerWord = 1
)

func threadWord(t *Thread) ownerWord {
	return ownerWord(uintptr(unsafe.Pointer(t)))
}

func wordThread(w ownerWord) *Thread {
	if w == ownerNone || w == ownerDeflater {
		return nil
	}
	return (*Thread)(unsafe.Pointer(w))
}

// ownerSlot is the atomic backing store for Monitor.owner.
type ownerSlot struct {
	v atomic.Uintptr
}

func (o *ownerSlot) load() ownerWord { return ownerWord(o.v.Load()) }

func (o *ownerSlot) isNone() bool { return o.load() == ownerNone }

func (o *ownerSlot) isDeflater() bool { return o.load() == ownerDeflater }

func (o *ownerSlot) is(t *Thread) bool { return o.load() == threadWord(t) }

func (o *ownerSlot) thread() *Thread { return wordThread(o.load()) }

func (o *ownerSlot) casNoneToSelf(self *Thread) bool {
	return o.v.CompareAndSwap(uintptr(ownerNone), uintptr(threadWord(self)))
}

func (o *ownerSlot) casSelfToNone(self *Thread) bool {
	return o.v.CompareAndSwap(uintptr(threadWord(self)), uintptr(ownerNone))
}

func (o *ownerSlot) casNoneToDeflater() bool {
	return o.v.CompareAndSwap(uintptr(ownerNone), uintptr(ownerDeflater))
}

func (o *ownerSlot) casDeflaterToNone() bool {
	return o.v.CompareAndSwap(uintptr(ownerDeflater), uintptr(ownerNone))
}

func (o *ownerSlot) casDeflaterToSelf(self *Thread) bool {
	return o.v.CompareAndSwap(uintptr(ownerDeflater), uintptr(threadWord(self)))
}

// storeNoneRelease publishes NONE. Go's atomic package is sequentially
// consistent, so this store already carries the release semantics and the
// StoreLoad ordering the spec calls out at the two Dekker pivots; no
// separate fence primitive is needed.
func (o *ownerSlot) storeNoneRelease() { o.v.Store(uintptr(ownerNone)) }

// heirSlot is the atomic backing store for succ and responsible: either
// NONE or a *Thread, never DEFLATER.
type heirSlot struct {
	v atomic.Uintptr
}

func (h *heirSlot) load() *Thread { return wordThread(ownerWord(h.v.Load())) }

func (h *heirSlot) is(t *Thread) bool { return h.v.Load() == uintptr(threadWord(t)) }

func (h *heirSlot) clear() { h.v.Store(uintptr(ownerNone)) }

func (h *heirSlot) casNoneToSelf(self *Thread) bool {
	return h.v.CompareAndSwap(uintptr(ownerNone), uintptr(threadWord(self)))
}

func (h *heirSlot) store(t *Thread) { h.v.Store(uintptr(threadWord(t))) }

func (h *heirSlot) clearIfSelf(self *Thread) {
	h.v.CompareAndSwap(uintptr(threadWord(self)), uintptr(ownerNone))
}

package objmon

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
	"weak"

	"github.com/llxisdsh/pb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Monitor is an inflated lock for one heap object of type T. It embeds the
// object-agnostic monitorCore and adds the weak handle and header-CAS
// collaborator the spec treats as external.
type Monitor[T any] struct {
	monitorCore

	object          weak.Pointer[T]
	header          HeaderCAS
	savedHeader     uint64
	installedHeader uint64
}

// Enter acquires the monitor, transparently retrying against the
// registry's inflate path if it observes a deflation race.
func (m *Monitor[T]) Enter(ctx context.Context, r *Registry[T], obj *T, self *Thread) error {
	for {
		err := m.enter(self)
		if err == nil {
			return nil
		}
		if err != errDeflationRace {
			return err
		}
		next, ierr := r.Inflate(obj, m.header, m.savedHeader)
		if ierr != nil {
			return ierr
		}
		return next.Enter(ctx, r, obj, self)
	}
}

// TryEnter is the non-blocking variant of Enter.
func (m *Monitor[T]) TryEnter(self *Thread) EnterResult {
	if m.owner.casNoneToSelf(self) {
		return Owned
	}
	if m.owner.is(self) {
		m.snapSeq.writeBegin()
		m.recursions++
		m.snapSeq.writeEnd()
		return Owned
	}
	if m.deflated() {
		return Interference
	}
	return HasOwner
}

// Exit releases the monitor. notSuspended is threaded through only to
// match the external contract; this core does not itself record the
// previous-owner event the spec mentions as ambiguous for suspended
// exits.
func (m *Monitor[T]) Exit(self *Thread, notSuspended bool) error {
	_ = notSuspended
	return m.exit(self)
}

// Wait, Notify, NotifyAll, CompleteExit, and ReenterAfterWait forward
// directly to monitorCore; Monitor only adds the object/header plumbing
// Enter needs for the retry-on-deflation path.
func (m *Monitor[T]) Wait(self *Thread, millis int64) (WaitResult, error) {
	return m.wait(self, millis)
}
func (m *Monitor[T]) Notify(self *Thread) error    { return m.notify(self) }
func (m *Monitor[T]) NotifyAll(self *Thread) error { return m.notifyAll(self) }
func (m *Monitor[T]) CompleteExit(self *Thread) (int64, error) {
	return m.completeExit(self)
}
func (m *Monitor[T]) ReenterAfterWait(self *Thread, depth int64) error {
	return m.reenterAfterWait(self, depth)
}
func (m *Monitor[T]) IsBusy() bool { return m.monitorCore.IsBusy() }

// registryConfig is populated by the functional options passed to New.
type registryConfig struct {
	scavengeInterval time.Duration
	scavengeWorkers  int
	safepoints       SafepointPoller
	maxFreeList      int
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		scavengeInterval: 500 * time.Millisecond,
		scavengeWorkers:  4,
		maxFreeList:      4096,
	}
}

// Option configures a Registry, either at construction (New) or later
// (Reconfigure).
type Option func(*registryConfig)

// WithScavengeInterval sets how often the background scavenger sweeps the
// monitor table looking for deflation candidates.
func WithScavengeInterval(d time.Duration) Option {
	return func(c *registryConfig) {
		if d > 0 {
			c.scavengeInterval = d
		}
	}
}

// WithScavengeWorkers sets how many deflate attempts a scavenge sweep runs
// concurrently.
func WithScavengeWorkers(n int) Option {
	return func(c *registryConfig) {
		if n > 0 {
			c.scavengeWorkers = n
		}
	}
}

// WithSafepointPoller installs the safepoint/GC-coordination collaborator
// every Monitor created by this Registry uses during adaptive spin.
func WithSafepointPoller(sp SafepointPoller) Option {
	return func(c *registryConfig) {
		c.safepoints = sp
	}
}

// WithMaxFreeList caps how many deflated monitors are retained for reuse
// before being left for the garbage collector.
func WithMaxFreeList(n int) Option {
	return func(c *registryConfig) {
		if n >= 0 {
			c.maxFreeList = n
		}
	}
}

// Registry owns the weak-handle arena mapping live objects to their
// inflated Monitor, plus the background scavenger that deflates idle
// monitors without ever stopping an acquirer.
type Registry[T any] struct {
	_ noCopy

	cfg atomic.Pointer[registryConfig]

	table   pb.MapOf[uintptr, *Monitor[T]]
	inflate onceGroup[uintptr, *Monitor[T]]

	freeMu   sync.Mutex
	freeList []*Monitor[T]

	scavPhase   scavengePhase
	scavTrigger scavengeTrigger
	scavGate    pauseGate

	shutdownC chan struct{}
	forceCh   chan struct{}

	closed atomic.Bool
}

// New constructs a Registry and starts its background scavenger.
func New[T any](opts ...Option) *Registry[T] {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.safepoints == nil {
		cfg.safepoints = noSafepoints{}
	}

	r := &Registry[T]{forceCh: make(chan struct{}, 1), shutdownC: make(chan struct{})}
	r.cfg.Store(&cfg)
	r.scavGate.resume()
	go r.scavengeLoop()
	return r
}

func (r *Registry[T]) config() registryConfig {
	return *r.cfg.Load()
}

// Reconfigure atomically replaces tunables. Monitors already inflated keep
// the safepoint poller they were given at Inflate; a change to
// scavengeWorkers takes effect on the next sweep, and a change to
// scavengeInterval on the wait after the current sweep. The config itself is
// replaced wholesale via copy-on-write: readers on the enter/exit slow
// path never block behind a writer, and Reconfigure retries its CAS
// against whatever the current pointer is rather than holding a lock
// across the option callbacks.
func (r *Registry[T]) Reconfigure(opts ...Option) {
	for {
		old := r.cfg.Load()
		next := *old
		for _, opt := range opts {
			opt(&next)
		}
		if next.safepoints == nil {
			next.safepoints = noSafepoints{}
		}
		if r.cfg.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Pause stops the scavenger from starting new sweeps until Resume is
// called; a sweep already in progress runs to completion.
func (r *Registry[T]) Pause() { r.scavGate.pause() }

// Resume lets a paused scavenger start sweeping again.
func (r *Registry[T]) Resume() { r.scavGate.resume() }

// PausedSweeps returns how many scavenge sweep attempts have actually
// blocked waiting for Resume, as opposed to finding the scavenger already
// running. Useful for confirming an operator's Pause call is taking
// effect rather than racing a concurrent Resume.
func (r *Registry[T]) PausedSweeps() uint64 { return r.scavGate.pausedCount() }

// Close stops the background scavenger permanently. It is safe to call
// more than once.
func (r *Registry[T]) Close() {
	if r.closed.CompareAndSwap(false, true) {
		close(r.shutdownC)
	}
}

func identityKey[T any](obj *T) uintptr {
	return uintptr(unsafe.Pointer(obj))
}

// Inflate returns the Monitor for obj, creating one if none exists yet.
// Concurrent Inflate calls for the same object are deduplicated: only one
// caller builds the Monitor, and every caller (including the builder)
// gets the same instance. header and neutral are the object's live header
// slot and its current (soon to be displaced) value.
func (r *Registry[T]) Inflate(obj *T, header HeaderCAS, neutral uint64) (*Monitor[T], error) {
	key := identityKey(obj)

	if existing, ok := r.table.Load(key); ok {
		// Served without the dedup group; still counted for InflateStats.
		r.inflate.calls.Add(1)
		return existing, nil
	}

	mon, err, _ := r.inflate.Do(key, func() (*Monitor[T], error) {
		if existing, ok := r.table.Load(key); ok {
			return existing, nil
		}

		mon := r.takeFromFreeList()
		mon.object = weak.Make(obj)
		mon.header = header
		mon.savedHeader = neutral
		mon.installedHeader = uint64(uintptr(unsafe.Pointer(mon)))
		if header != nil {
			// Idempotent: if another racer already installed our own
			// pointer (or any value), the CAS's success or failure does
			// not change what this Monitor believes it installed.
			header.CompareAndSwap(neutral, mon.installedHeader)
		}
		mon.owner = ownerSlot{}
		mon.contentions.Store(0)
		mon.recursions = 0
		mon.entryList = nil
		mon.cxq.Store(nil)
		mon.waitSet = nil
		mon.waiters.Store(0)
		mon.succ = heirSlot{}
		mon.responsible = heirSlot{}
		mon.safepoints = r.config().safepoints

		r.table.Store(key, mon)
		runtime.AddCleanup(obj, r.evictOnCollect, key)
		return mon, nil
	})
	return mon, err
}

func (r *Registry[T]) evictOnCollect(key uintptr) {
	if mon, ok := r.table.Load(key); ok {
		r.table.CompareAndDelete(key, mon)
	}
}

func (r *Registry[T]) takeFromFreeList() *Monitor[T] {
	r.freeMu.Lock()
	defer r.freeMu.Unlock()
	n := len(r.freeList)
	if n == 0 {
		return &Monitor[T]{monitorCore: *newMonitorCore(nil)}
	}
	mon := r.freeList[n-1]
	r.freeList[n-1] = nil
	r.freeList = r.freeList[:n-1]
	return mon
}

func (r *Registry[T]) returnToFreeList(mon *Monitor[T]) {
	r.freeMu.Lock()
	defer r.freeMu.Unlock()
	if len(r.freeList) >= r.config().maxFreeList {
		return
	}
	r.freeList = append(r.freeList, mon)
}

// TriggerScavenge forces an immediate sweep and blocks until the
// scavenger next completes a sweep (which may be one already in progress
// when it was called).
func (r *Registry[T]) TriggerScavenge() {
	select {
	case r.forceCh <- struct{}{}:
	default:
		// A trigger is already pending; it will cover this caller too.
	}
	r.scavTrigger.trigger()
}

// InflateStats reports how many Inflate calls this Registry has served and
// how many of those joined a build already in flight for the same object
// instead of racing a fresh one, a direct measure of how much contention
// the inflate path is absorbing.
func (r *Registry[T]) InflateStats() (calls, deduped uint64) {
	return r.inflate.counts()
}

// ForcedSweeps returns how many TriggerScavenge calls have been serviced.
func (r *Registry[T]) ForcedSweeps() uint64 { return r.scavTrigger.forcedCount() }

// CurrentSweep returns the number of scavenge sweeps completed so far.
func (r *Registry[T]) CurrentSweep() uint64 { return r.scavPhase.gen.current() }

// WaitForSweep blocks until scavenge sweep number n or later has
// completed. Chiefly useful in tests that need to observe the effect of a
// deflation pass deterministically.
func (r *Registry[T]) WaitForSweep(n uint64) { r.scavPhase.gen.waitAtLeast(n) }

func (r *Registry[T]) scavengeLoop() {
	r.scavPhase.register()
	defer r.scavPhase.arriveAndDeregister()

	for {
		select {
		case <-r.shutdownC:
			return
		default:
		}

		r.scavGate.waitRunning()

		r.sweep()
		r.scavPhase.arrive()
		r.scavTrigger.beat()

		timer := time.NewTimer(r.config().scavengeInterval)
		select {
		case <-timer.C:
		case <-r.shutdownC:
			timer.Stop()
			return
		case <-r.forceCh:
			timer.Stop()
		}
	}
}

// sweep walks the monitor table and runs one deflate attempt per monitor,
// each in its own goroutine, with at most cfg.scavengeWorkers in flight at
// once: a weighted semaphore bounds simultaneous header-CAS work so a
// huge table does not stampede every monitor's header collaborator at
// once.
func (r *Registry[T]) sweep() {
	cfg := r.config()
	workers := cfg.scavengeWorkers
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	ctx := context.Background()
	var eg errgroup.Group

	r.table.Range(func(key uintptr, mon *Monitor[T]) bool {
		if err := sem.Acquire(ctx, 1); err != nil {
			return false
		}
		eg.Go(func() error {
			defer sem.Release(1)
			r.deflateOne(key, mon)
			return nil
		})
		return true
	})
	_ = eg.Wait()
}

func (r *Registry[T]) deflateOne(key uintptr, mon *Monitor[T]) {
	obj := mon.object.Value()
	cleared := obj == nil

	outcome := mon.tryDeflate(cleared)
	if outcome != deflateCommitted {
		return
	}

	if mon.header != nil {
		// Idempotent per the spec: another racer having already
		// installed the neutral header is success, not an error.
		mon.header.CompareAndSwap(mon.installedHeader, mon.savedHeader)
	}

	r.table.CompareAndDelete(key, mon)
	r.returnToFreeList(mon)
}
